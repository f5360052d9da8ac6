package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/metrics"
	"github.com/priboy68rus/topdeck-compare/internal/models"
)

// ErrMalformedResolverResponse is returned when the remote resolver answers
// with a body that is not the expected JSON.
var ErrMalformedResolverResponse = errors.New("malformed resolver response")

// errResolverUnavailable marks transport failures and non-2xx answers. These
// are reported as unresolved results, not errors.
var errResolverUnavailable = errors.New("resolver unavailable")

type resolveBatchRequest struct {
	Names []string `json:"names"`
}

type resolveBatchResponse struct {
	Results []models.NamedOracleData `json:"results"`
}

// RemoteOracle resolves names through a remote resolver service.
type RemoteOracle struct {
	client  *http.Client
	baseURL string
	group   singleflight.Group
	cache   *oracleCache
}

func NewRemoteOracle(baseURL string, timeout time.Duration) *RemoteOracle {
	return &RemoteOracle{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   newOracleCache(),
	}
}

func (o *RemoteOracle) Mode() string { return config.OracleModeRemote }

// Resolve returns the cached result for name or asks the remote service.
// Concurrent calls for the same name share one request; a caller that gives
// up early does not cancel it for the others.
func (o *RemoteOracle) Resolve(ctx context.Context, name string) (models.OracleData, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return models.Unresolved(), nil
	}
	if data, ok := o.cache.get(key); ok {
		metrics.OracleLookupsTotal.WithLabelValues(o.Mode(), "cached").Inc()
		return data, nil
	}

	// The shared request outlives any single caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(key, func() (any, error) {
		if data, ok := o.cache.get(key); ok {
			return data, nil
		}
		data, err := o.fetchOne(fetchCtx, key)
		if err != nil {
			return models.Unresolved(), err
		}
		o.cache.put(key, data)
		return data, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return models.Unresolved(), ctx.Err()
	case res = <-ch:
	}
	data, err := res.Val.(models.OracleData), res.Err

	switch {
	case err == nil:
		recordLookup(o.Mode(), data)
		return data, nil
	case errors.Is(err, ErrMalformedResolverResponse):
		metrics.OracleLookupsTotal.WithLabelValues(o.Mode(), "error").Inc()
		return models.Unresolved(), err
	default:
		log.Printf("Warning: remote resolver lookup for %q failed: %v", key, err)
		metrics.OracleLookupsTotal.WithLabelValues(o.Mode(), "error").Inc()
		return models.Unresolved(), nil
	}
}

func (o *RemoteOracle) fetchOne(ctx context.Context, name string) (models.OracleData, error) {
	reqURL := o.baseURL + "/resolve?name=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return models.OracleData{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		metrics.ResolverRequestsTotal.WithLabelValues("resolve", "failed").Inc()
		return models.OracleData{}, fmt.Errorf("%w: %v", errResolverUnavailable, err)
	}
	defer resp.Body.Close()

	// The service rejects names that sanitize to nothing; those never resolve.
	if resp.StatusCode == http.StatusBadRequest {
		metrics.ResolverRequestsTotal.WithLabelValues("resolve", "success").Inc()
		return models.Unresolved(), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ResolverRequestsTotal.WithLabelValues("resolve", "failed").Inc()
		return models.OracleData{}, fmt.Errorf("%w: status %d", errResolverUnavailable, resp.StatusCode)
	}

	var data models.OracleData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		metrics.ResolverRequestsTotal.WithLabelValues("resolve", "malformed").Inc()
		return models.OracleData{}, fmt.Errorf("%w: %v", ErrMalformedResolverResponse, err)
	}
	metrics.ResolverRequestsTotal.WithLabelValues("resolve", "success").Inc()
	if data.ImageURLs == nil {
		data.ImageURLs = []string{}
	}
	return data, nil
}

// ResolveBatch primes the cache with one batch request and then answers from
// it. Names the batch could not settle fall back to single lookups.
func (o *RemoteOracle) ResolveBatch(ctx context.Context, names []string) (map[string]models.OracleData, error) {
	if err := o.Prime(ctx, names); err != nil {
		log.Printf("Warning: remote resolver batch failed, resolving one by one: %v", err)
	}
	results := make(map[string]models.OracleData)
	for _, name := range uniqueNames(names) {
		data, err := o.Resolve(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Printf("Warning: remote resolver lookup for %q failed: %v", name, err)
		}
		results[name] = data
	}
	return results, nil
}

// Prime resets the miss count and resolves every name not already cached as
// a hit with a single batch request. Names absent from the response are
// cached as misses.
func (o *RemoteOracle) Prime(ctx context.Context, names []string) error {
	o.cache.resetMisses()
	defer func() { metrics.ResolverMisses.Set(float64(o.cache.missCount())) }()

	pending := o.cache.pending(uniqueNames(names))
	if len(pending) == 0 {
		return nil
	}

	body, err := json.Marshal(resolveBatchRequest{Names: pending})
	if err != nil {
		return fmt.Errorf("failed to encode batch request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/resolve-batch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		metrics.ResolverRequestsTotal.WithLabelValues("batch", "failed").Inc()
		return fmt.Errorf("failed to call resolver batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ResolverRequestsTotal.WithLabelValues("batch", "failed").Inc()
		return fmt.Errorf("resolver batch returned status %d", resp.StatusCode)
	}

	var batch resolveBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		metrics.ResolverRequestsTotal.WithLabelValues("batch", "malformed").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedResolverResponse, err)
	}
	metrics.ResolverRequestsTotal.WithLabelValues("batch", "success").Inc()

	byName := make(map[string]models.OracleData, len(batch.Results))
	for _, r := range batch.Results {
		byName[strings.TrimSpace(r.Name)] = r.OracleData
	}

	for _, name := range pending {
		data, ok := byName[name]
		if !ok {
			// The service answers with sanitized names.
			data, ok = byName[SanitizeListingName(name)]
		}
		if ok && data.Resolved() {
			o.cache.put(name, data)
			continue
		}
		o.cache.putMiss(name)
	}
	return nil
}

func (o *RemoteOracle) MissCount() int {
	return o.cache.missCount()
}

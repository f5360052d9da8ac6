package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/metrics"
	"github.com/priboy68rus/topdeck-compare/internal/models"
)

// ErrOracleUnavailable means the resolver cannot answer any name, as opposed
// to failing on a single one.
var ErrOracleUnavailable = errors.New("oracle index unavailable")

// OracleResolver resolves raw card names to Scryfall oracle ids. Exactly one
// implementation is selected at startup.
type OracleResolver interface {
	// Resolve looks up one name. A name that matches no card is not an error.
	Resolve(ctx context.Context, name string) (models.OracleData, error)
	// ResolveBatch returns one result per unique trimmed, non-empty name.
	ResolveBatch(ctx context.Context, names []string) (map[string]models.OracleData, error)
	// Prime warms the resolver for the given names and resets the miss count.
	Prime(ctx context.Context, names []string) error
	// MissCount is the number of names the last Prime could not resolve.
	MissCount() int
	Mode() string
}

// NewOracleResolver builds the resolver for the configured mode.
func NewOracleResolver(cfg *config.Config, store *BulkDataStore) (OracleResolver, error) {
	switch cfg.OracleMode {
	case config.OracleModeLocal:
		return NewLocalOracle(store), nil
	case config.OracleModeRemote:
		return NewRemoteOracle(cfg.ResolverURL, cfg.HTTPTimeout), nil
	case config.OracleModeAPI:
		return NewAPIOracle(NewScryfallService(cfg.HTTPTimeout, cfg.ScryfallRateLimit)), nil
	default:
		return nil, fmt.Errorf("unknown oracle mode %q", cfg.OracleMode)
	}
}

// CardLoader supplies the reference dataset.
type CardLoader interface {
	LoadCards(ctx context.Context) ([]ScryfallCard, error)
}

// LocalOracle resolves names against an in-memory index built from the bulk
// dataset on first use.
type LocalOracle struct {
	loader CardLoader
	group  singleflight.Group

	mu     sync.RWMutex
	index  *OracleIndex
	misses int
}

func NewLocalOracle(loader CardLoader) *LocalOracle {
	return &LocalOracle{loader: loader}
}

func (o *LocalOracle) Mode() string { return config.OracleModeLocal }

// Index returns the oracle index, building it if needed. Concurrent callers
// share one build. A failed build is not cached, so the next call retries.
func (o *LocalOracle) Index(ctx context.Context) (*OracleIndex, error) {
	o.mu.RLock()
	idx := o.index
	o.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	// The build outlives any single caller's cancellation.
	buildCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan("index", func() (any, error) {
		o.mu.RLock()
		existing := o.index
		o.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		start := time.Now()
		cards, err := o.loader.LoadCards(buildCtx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load reference data: %w", ErrOracleUnavailable, err)
		}
		built := BuildOracleIndex(cards)

		o.mu.Lock()
		o.index = built
		o.mu.Unlock()

		metrics.OracleIndexBuildDuration.Observe(time.Since(start).Seconds())
		metrics.OracleIndexSize.Set(float64(built.Size()))
		log.Printf("Oracle index built: %d printings, %d cards, %d names in %s",
			len(cards), built.Size(), built.NameCount(), time.Since(start).Round(time.Millisecond))
		return built, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*OracleIndex), nil
	}
}

func (o *LocalOracle) Resolve(ctx context.Context, name string) (models.OracleData, error) {
	idx, err := o.Index(ctx)
	if err != nil {
		metrics.OracleLookupsTotal.WithLabelValues(o.Mode(), "error").Inc()
		return models.Unresolved(), err
	}
	data := idx.Lookup(name)
	recordLookup(o.Mode(), data)
	return data, nil
}

func (o *LocalOracle) ResolveBatch(ctx context.Context, names []string) (map[string]models.OracleData, error) {
	idx, err := o.Index(ctx)
	if err != nil {
		return nil, err
	}
	results := make(map[string]models.OracleData)
	for _, name := range uniqueNames(names) {
		data := idx.Lookup(name)
		recordLookup(o.Mode(), data)
		results[name] = data
	}
	return results, nil
}

// Prime builds the index and counts the names it cannot resolve.
func (o *LocalOracle) Prime(ctx context.Context, names []string) error {
	idx, err := o.Index(ctx)
	if err != nil {
		return err
	}
	misses := 0
	for _, name := range uniqueNames(names) {
		if !idx.Lookup(name).Resolved() {
			misses++
		}
	}
	o.mu.Lock()
	o.misses = misses
	o.mu.Unlock()
	metrics.ResolverMisses.Set(float64(misses))
	return nil
}

func (o *LocalOracle) MissCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.misses
}

// oracleCache memoizes results by trimmed raw name. Entries never expire;
// Prime may drop a cached miss to retry it.
type oracleCache struct {
	mu      sync.RWMutex
	entries map[string]models.OracleData
	misses  map[string]struct{}
}

func newOracleCache() *oracleCache {
	return &oracleCache{
		entries: make(map[string]models.OracleData),
		misses:  make(map[string]struct{}),
	}
}

func (c *oracleCache) get(key string) (models.OracleData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key]
	return data, ok
}

func (c *oracleCache) put(key string, data models.OracleData) {
	if data.ImageURLs == nil {
		data.ImageURLs = []string{}
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
}

// putMiss caches an explicit miss and counts it for the current pass.
func (c *oracleCache) putMiss(key string) {
	c.mu.Lock()
	c.entries[key] = models.Unresolved()
	c.misses[key] = struct{}{}
	c.mu.Unlock()
}

// pending returns the names that still need a lookup. Cached misses are
// dropped so they get retried.
func (c *oracleCache) pending(names []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, name := range names {
		data, ok := c.entries[name]
		if ok && data.Resolved() {
			continue
		}
		if ok {
			delete(c.entries, name)
		}
		out = append(out, name)
	}
	return out
}

// countMiss records a miss for the current pass without caching anything.
func (c *oracleCache) countMiss(key string) {
	c.mu.Lock()
	c.misses[key] = struct{}{}
	c.mu.Unlock()
}

func (c *oracleCache) resetMisses() {
	c.mu.Lock()
	c.misses = make(map[string]struct{})
	c.mu.Unlock()
}

func (c *oracleCache) missCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.misses)
}

func recordLookup(mode string, data models.OracleData) {
	result := "miss"
	if data.Resolved() {
		result = "hit"
	}
	metrics.OracleLookupsTotal.WithLabelValues(mode, result).Inc()
}

// uniqueNames trims names, drops empties and duplicates, and keeps the
// first-seen order.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

package services

import (
	"context"
	"log"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/metrics"
	"github.com/priboy68rus/topdeck-compare/internal/models"
)

// cardFinder is the part of ScryfallService the API oracle needs.
type cardFinder interface {
	FindCard(ctx context.Context, name string) (*ScryfallCard, error)
}

// APIOracle resolves names one at a time against the Scryfall API. Results,
// including misses, are cached for the life of the process.
type APIOracle struct {
	scryfall cardFinder
	group    singleflight.Group
	cache    *oracleCache
}

func NewAPIOracle(scryfall cardFinder) *APIOracle {
	return &APIOracle{
		scryfall: scryfall,
		cache:    newOracleCache(),
	}
}

func (o *APIOracle) Mode() string { return config.OracleModeAPI }

func (o *APIOracle) Resolve(ctx context.Context, name string) (models.OracleData, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return models.Unresolved(), nil
	}
	if data, ok := o.cache.get(key); ok {
		metrics.OracleLookupsTotal.WithLabelValues(o.Mode(), "cached").Inc()
		return data, nil
	}

	lookupCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(key, func() (any, error) {
		query := SanitizeListingName(key)
		if query == "" {
			o.cache.put(key, models.Unresolved())
			return models.Unresolved(), nil
		}
		card, err := o.scryfall.FindCard(lookupCtx, query)
		if err != nil {
			return models.Unresolved(), err
		}
		data := models.Unresolved()
		if card != nil && card.OracleID != "" {
			data.OracleID = card.OracleID
			data.ImageURLs = imagesForCard(card)
			if price, ok := eurPrice(card); ok {
				data.EURPrice = &price
			}
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
	if res.Err != nil {
		log.Printf("Warning: Scryfall lookup for %q failed: %v", key, res.Err)
		metrics.OracleLookupsTotal.WithLabelValues(o.Mode(), "error").Inc()
		return models.Unresolved(), nil
	}
	data := res.Val.(models.OracleData)
	recordLookup(o.Mode(), data)
	return data, nil
}

func (o *APIOracle) ResolveBatch(ctx context.Context, names []string) (map[string]models.OracleData, error) {
	results := make(map[string]models.OracleData)
	for _, name := range uniqueNames(names) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := o.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		results[name] = data
	}
	return results, nil
}

// Prime resolves names sequentially; the Scryfall client is rate limited
// anyway.
func (o *APIOracle) Prime(ctx context.Context, names []string) error {
	o.cache.resetMisses()
	defer func() { metrics.ResolverMisses.Set(float64(o.cache.missCount())) }()

	for _, name := range uniqueNames(names) {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := o.Resolve(ctx, name)
		if err != nil {
			return err
		}
		if !data.Resolved() {
			o.cache.countMiss(name)
		}
	}
	return nil
}

func (o *APIOracle) MissCount() int {
	return o.cache.missCount()
}

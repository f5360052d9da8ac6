package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/priboy68rus/topdeck-compare/internal/metrics"
	"github.com/priboy68rus/topdeck-compare/internal/models"
)

// WishlistSource fetches the wanted cards.
type WishlistSource interface {
	FetchWishlist(ctx context.Context, deckURL string) (*models.Wishlist, error)
}

// ListingSource fetches a parsed listing page.
type ListingSource interface {
	FetchListing(ctx context.Context, pageURL string) (*models.ListingPage, error)
}

// RunRecorder persists comparison summaries.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.ComparisonRun) error
}

// CompareService joins a wishlist against a listing by card identity.
type CompareService struct {
	wishlists WishlistSource
	listings  ListingSource
	oracle    OracleResolver
	history   RunRecorder
}

// NewCompareService wires the comparison. history may be nil.
func NewCompareService(wishlists WishlistSource, listings ListingSource, oracle OracleResolver, history RunRecorder) *CompareService {
	return &CompareService{
		wishlists: wishlists,
		listings:  listings,
		oracle:    oracle,
		history:   history,
	}
}

// Compare fetches both sources in parallel and matches every wishlist card
// with the listing entries for the same card. Source fetch failures abort the
// comparison; resolver failures only leave cards unresolved.
func (s *CompareService) Compare(ctx context.Context, wishlistURL, listingURL string) (*models.ComparisonResult, error) {
	var (
		wishlist *models.Wishlist
		page     *models.ListingPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := s.wishlists.FetchWishlist(gctx, wishlistURL)
		if err != nil {
			return fmt.Errorf("failed to fetch wishlist: %w", err)
		}
		wishlist = w
		return nil
	})
	g.Go(func() error {
		p, err := s.listings.FetchListing(gctx, listingURL)
		if err != nil {
			return fmt.Errorf("failed to fetch listing: %w", err)
		}
		page = p
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.ComparisonsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	names := make([]string, 0, len(wishlist.Cards)+len(page.Entries))
	for _, c := range wishlist.Cards {
		names = append(names, c.Name)
	}
	for _, e := range page.Entries {
		names = append(names, e.Name)
	}
	if err := s.oracle.Prime(ctx, names); err != nil {
		log.Printf("Warning: failed to prime %s resolver: %v", s.oracle.Mode(), err)
	}

	resolved := s.resolveAll(ctx, names)
	lookup := func(name string) models.OracleData {
		if data, ok := resolved[strings.TrimSpace(name)]; ok {
			return data
		}
		return models.Unresolved()
	}

	listingsByKey := indexListings(page.Entries, lookup)

	result := &models.ComparisonResult{
		RunID:           uuid.NewString(),
		DeckName:        wishlist.DeckName,
		DeckAuthor:      wishlist.Author,
		ListingTitle:    page.Title,
		ListingAuthor:   page.Author,
		ListingAuthorID: page.AuthorID,
		Rows:            make([]models.CardComparison, 0, len(wishlist.Cards)),
	}

	total := decimal.Zero
	for _, card := range wishlist.Cards {
		data := lookup(card.Name)
		var listings []models.ResolvedListingEntry
		if key := matchKey(data.OracleID, card.Name); key != "" {
			listings = listingsByKey[key]
		}
		if len(listings) == 0 {
			if key := nameKey(card.Name); key != "" {
				listings = listingsByKey[key]
			}
		}
		if listings == nil {
			listings = []models.ResolvedListingEntry{}
		}

		tags := card.Tags
		if tags == nil {
			tags = []string{}
		}
		row := models.CardComparison{
			Name:        card.Name,
			OracleID:    data.OracleID,
			ImageURL:    data.ImageURL(),
			ImageURLs:   data.ImageURLs,
			EURPrice:    data.EURPrice,
			Tags:        tags,
			WishlistQty: card.Quantity,
			Listings:    listings,
		}
		if row.ImageURLs == nil {
			row.ImageURLs = []string{}
		}
		if cheapest, ok := row.CheapestListing(); ok {
			result.ListedCards++
			total = total.Add(decimal.NewFromFloat(cheapest).Mul(decimal.NewFromInt(int64(card.Quantity))))
		}
		if !data.Resolved() {
			result.UnresolvedCards++
		}
		result.Rows = append(result.Rows, row)
	}

	sortRows(result.Rows)
	result.TotalCards = len(result.Rows)
	result.ResolverMisses = s.oracle.MissCount()
	result.ListingTotal = total.Round(2).InexactFloat64()

	metrics.ComparisonsTotal.WithLabelValues("success").Inc()
	metrics.ComparisonUnresolved.Observe(float64(result.UnresolvedCards))
	log.Printf("Compared %d wishlist cards against %d listing entries: %d listed, %d unresolved",
		result.TotalCards, len(page.Entries), result.ListedCards, result.UnresolvedCards)

	if s.history != nil {
		run := &models.ComparisonRun{
			ID:              result.RunID,
			WishlistURL:     wishlistURL,
			ListingURL:      listingURL,
			DeckName:        result.DeckName,
			ListingTitle:    result.ListingTitle,
			TotalCards:      result.TotalCards,
			ListedCards:     result.ListedCards,
			UnresolvedCards: result.UnresolvedCards,
			ResolverMisses:  result.ResolverMisses,
			ListingTotal:    result.ListingTotal,
			OracleMode:      s.oracle.Mode(),
		}
		if err := s.history.SaveRun(ctx, run); err != nil {
			log.Printf("Warning: failed to record comparison run: %v", err)
		}
	}
	return result, nil
}

// resolveAll answers each unique name from the primed resolver. A failure on
// one name leaves that name unresolved; when the resolver as a whole is
// unavailable the remaining names are matched by name only.
func (s *CompareService) resolveAll(ctx context.Context, names []string) map[string]models.OracleData {
	resolved := make(map[string]models.OracleData)
	for _, name := range uniqueNames(names) {
		data, err := s.oracle.Resolve(ctx, name)
		if err != nil {
			if errors.Is(err, ErrOracleUnavailable) || ctx.Err() != nil {
				log.Printf("Warning: %s resolver unavailable, matching remaining cards by name: %v", s.oracle.Mode(), err)
				break
			}
			log.Printf("Warning: %s resolver failed on %q: %v", s.oracle.Mode(), name, err)
			data = models.Unresolved()
		}
		resolved[name] = data
	}
	return resolved
}

// DebugListing parses a listing and resolves every entry, for inspecting
// what the parser extracted.
func (s *CompareService) DebugListing(ctx context.Context, listingURL string) (*models.ListingDebug, error) {
	page, err := s.listings.FetchListing(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	names := make([]string, len(page.Entries))
	for i, e := range page.Entries {
		names[i] = e.Name
	}
	resolved, err := s.oracle.ResolveBatch(ctx, names)
	if err != nil {
		log.Printf("Warning: %s resolver failed: %v", s.oracle.Mode(), err)
		resolved = map[string]models.OracleData{}
	}

	debug := &models.ListingDebug{
		URL:     page.URL,
		Title:   page.Title,
		Entries: make([]models.ResolvedListingEntry, len(page.Entries)),
	}
	for i, e := range page.Entries {
		debug.Entries[i] = models.ResolvedListingEntry{
			ListingEntry: e,
			OracleID:     resolved[strings.TrimSpace(e.Name)].OracleID,
		}
	}
	return debug, nil
}

// indexListings files every entry under its identity key and its name key.
func indexListings(entries []models.ListingEntry, lookup func(string) models.OracleData) map[string][]models.ResolvedListingEntry {
	byKey := make(map[string][]models.ResolvedListingEntry)
	for _, e := range entries {
		resolved := models.ResolvedListingEntry{ListingEntry: e, OracleID: lookup(e.Name).OracleID}
		primary := matchKey(resolved.OracleID, e.Name)
		if primary != "" {
			byKey[primary] = append(byKey[primary], resolved)
		}
		if key := nameKey(e.Name); key != "" && key != primary {
			byKey[key] = append(byKey[key], resolved)
		}
	}
	return byKey
}

func matchKey(oracleID, name string) string {
	if oracleID != "" {
		return "oracle:" + oracleID
	}
	return nameKey(name)
}

func nameKey(name string) string {
	if normalized := NormalizeForMatching(name); normalized != "" {
		return "name:" + normalized
	}
	return ""
}

// sortRows orders rows by card name using locale-aware collation so mixed
// Latin and Cyrillic names sort the way a reader expects.
func sortRows(rows []models.CardComparison) {
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(rows, func(i, j int) bool {
		return c.CompareString(rows[i].Name, rows[j].Name) < 0
	})
}

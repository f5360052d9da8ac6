package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/priboy68rus/topdeck-compare/internal/models"
)

type stubWishlists struct {
	wishlist *models.Wishlist
	err      error
}

func (s *stubWishlists) FetchWishlist(ctx context.Context, deckURL string) (*models.Wishlist, error) {
	return s.wishlist, s.err
}

type stubListings struct {
	page *models.ListingPage
	err  error
}

func (s *stubListings) FetchListing(ctx context.Context, pageURL string) (*models.ListingPage, error) {
	return s.page, s.err
}

// stubOracle resolves exact names from a table.
type stubOracle struct {
	mu     sync.Mutex
	known  map[string]string
	misses int
}

func (o *stubOracle) Mode() string { return "stub" }

func (o *stubOracle) Resolve(ctx context.Context, name string) (models.OracleData, error) {
	if id, ok := o.known[name]; ok {
		return models.OracleData{OracleID: id, ImageURLs: []string{id + ".jpg"}}, nil
	}
	return models.Unresolved(), nil
}

func (o *stubOracle) ResolveBatch(ctx context.Context, names []string) (map[string]models.OracleData, error) {
	out := make(map[string]models.OracleData)
	for _, n := range uniqueNames(names) {
		out[n], _ = o.Resolve(ctx, n)
	}
	return out, nil
}

func (o *stubOracle) Prime(ctx context.Context, names []string) error {
	misses := 0
	for _, n := range uniqueNames(names) {
		if _, ok := o.known[n]; !ok {
			misses++
		}
	}
	o.mu.Lock()
	o.misses = misses
	o.mu.Unlock()
	return nil
}

func (o *stubOracle) MissCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.misses
}

type recordingHistory struct {
	runs []*models.ComparisonRun
}

func (h *recordingHistory) SaveRun(ctx context.Context, run *models.ComparisonRun) error {
	h.runs = append(h.runs, run)
	return nil
}

func compareFixture() (*stubWishlists, *stubListings, *stubOracle) {
	wishlists := &stubWishlists{wishlist: &models.Wishlist{
		DeckName: "Wishlist",
		Author:   "vasya",
		Cards: []models.WishlistCard{
			{Name: "Sol Ring", Quantity: 1, Tags: []string{"ramp"}},
			{Name: "Lightning Bolt", Quantity: 2},
			{Name: "Mystery Card", Quantity: 1},
		},
	}}
	listings := &stubListings{page: &models.ListingPage{
		URL:      "https://topdeck.ru/apps/toptrade/singles/1",
		Title:    "Продам",
		Author:   "seller",
		AuthorID: "42",
		Entries: []models.ListingEntry{
			{Name: "Lightning Bolt", Price: 150, RawLine: "Lightning Bolt - 150 руб"},
			{Name: "Молния", Price: 120, RawLine: "Молния - 120 руб"},
			{Name: "Sol Ring", Price: 80, RawLine: "Sol Ring - 80 руб"},
			{Name: "Counterspell", Price: 50, RawLine: "Counterspell - 50 руб"},
		},
	}}
	oracle := &stubOracle{known: map[string]string{
		"Lightning Bolt": "o-bolt",
		"Молния":         "o-bolt",
	}}
	return wishlists, listings, oracle
}

func TestCompare(t *testing.T) {
	wishlists, listings, oracle := compareFixture()
	history := &recordingHistory{}
	svc := NewCompareService(wishlists, listings, oracle, history)

	result, err := svc.Compare(context.Background(), "https://moxfield.com/decks/abc", "https://topdeck.ru/x")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	wantOrder := []string{"Lightning Bolt", "Mystery Card", "Sol Ring"}
	if len(result.Rows) != len(wantOrder) {
		t.Fatalf("got %d rows, want %d", len(result.Rows), len(wantOrder))
	}
	for i, name := range wantOrder {
		if result.Rows[i].Name != name {
			t.Errorf("row %d = %q, want %q", i, result.Rows[i].Name, name)
		}
	}

	bolt := result.Rows[0]
	if len(bolt.Listings) != 2 {
		t.Errorf("Lightning Bolt should match both the English and Russian listing, got %+v", bolt.Listings)
	}
	if bolt.ImageURL != "o-bolt.jpg" {
		t.Errorf("ImageURL = %q", bolt.ImageURL)
	}

	solRing := result.Rows[2]
	if len(solRing.Listings) != 1 || solRing.Listings[0].Price != 80 {
		t.Errorf("Sol Ring should match by name, got %+v", solRing.Listings)
	}
	if len(solRing.Tags) != 1 || solRing.Tags[0] != "ramp" {
		t.Errorf("Sol Ring tags = %v", solRing.Tags)
	}

	mystery := result.Rows[1]
	if mystery.Listings == nil || len(mystery.Listings) != 0 || mystery.Tags == nil {
		t.Errorf("unlisted card should have empty lists, got %+v", mystery)
	}

	if result.TotalCards != 3 || result.ListedCards != 2 || result.UnresolvedCards != 2 {
		t.Errorf("counts = total %d, listed %d, unresolved %d", result.TotalCards, result.ListedCards, result.UnresolvedCards)
	}
	if result.ResolverMisses != 3 {
		t.Errorf("ResolverMisses = %d, want 3", result.ResolverMisses)
	}
	// 2 x 120 for Lightning Bolt plus 80 for Sol Ring.
	if result.ListingTotal != 320 {
		t.Errorf("ListingTotal = %v, want 320", result.ListingTotal)
	}
	if result.ListingAuthorID != "42" || result.DeckAuthor != "vasya" {
		t.Errorf("metadata not carried over: %+v", result)
	}

	if len(history.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(history.runs))
	}
	if run := history.runs[0]; run.ID != result.RunID || run.OracleMode != "stub" || run.ListingURL != "https://topdeck.ru/x" {
		t.Errorf("unexpected recorded run %+v", run)
	}
}

func TestCompareSourceFailure(t *testing.T) {
	wishlists, listings, oracle := compareFixture()
	wishlists.err = ErrInvalidDeckURL
	svc := NewCompareService(wishlists, listings, oracle, nil)

	_, err := svc.Compare(context.Background(), "bad", "https://topdeck.ru/x")
	if !errors.Is(err, ErrInvalidDeckURL) {
		t.Errorf("expected wrapped ErrInvalidDeckURL, got %v", err)
	}

	wishlists.err = nil
	listings.err = ErrListingFetch
	_, err = svc.Compare(context.Background(), "https://moxfield.com/decks/abc", "https://topdeck.ru/x")
	if !errors.Is(err, ErrListingFetch) {
		t.Errorf("expected wrapped ErrListingFetch, got %v", err)
	}
}

func TestCompareMalformedRemoteAnswerOnlyAffectsThatName(t *testing.T) {
	server := newFlakyResolver(t)

	wishlists := &stubWishlists{wishlist: &models.Wishlist{Cards: []models.WishlistCard{
		{Name: "Broken Card", Quantity: 1},
		{Name: "Sol Ring", Quantity: 1},
	}}}
	listings := &stubListings{page: &models.ListingPage{Entries: []models.ListingEntry{
		{Name: "Broken Card", Price: 100},
		{Name: "Sol Ring", Price: 80},
	}}}
	svc := NewCompareService(wishlists, listings, NewRemoteOracle(server.URL, 5*time.Second), nil)

	result, err := svc.Compare(context.Background(), "https://moxfield.com/decks/abc", "https://topdeck.ru/x")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	rows := make(map[string]models.CardComparison)
	for _, row := range result.Rows {
		rows[row.Name] = row
	}
	if got := rows["Sol Ring"].OracleID; got != "o-ring" {
		t.Errorf("Sol Ring OracleID = %q, want o-ring", got)
	}
	broken := rows["Broken Card"]
	if broken.OracleID != "" || len(broken.Listings) != 1 {
		t.Errorf("Broken Card should stay unresolved and match by name, got %+v", broken)
	}
	if result.ListedCards != 2 || result.UnresolvedCards != 1 {
		t.Errorf("counts = listed %d, unresolved %d; want 2, 1", result.ListedCards, result.UnresolvedCards)
	}
}

func TestResolveAllStopsWhenOracleUnavailable(t *testing.T) {
	loader := &fakeLoader{}
	loader.fail.Store(true)
	svc := NewCompareService(nil, nil, NewLocalOracle(loader), nil)

	resolved := svc.resolveAll(context.Background(), []string{"Lightning Bolt", "Sol Ring", "Counterspell"})
	if len(resolved) != 0 {
		t.Errorf("resolveAll() = %v, want no results", resolved)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}

	_, err := NewLocalOracle(loader).Resolve(context.Background(), "Lightning Bolt")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Errorf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestIndexListingsNoDuplicates(t *testing.T) {
	entries := []models.ListingEntry{{Name: "Sol Ring", Price: 80}}
	byKey := indexListings(entries, func(string) models.OracleData { return models.Unresolved() })
	if got := byKey["name:sol ring"]; len(got) != 1 {
		t.Errorf("unresolved entry filed %d times under its name key, want 1", len(got))
	}
}

func TestDebugListing(t *testing.T) {
	_, listings, oracle := compareFixture()
	svc := NewCompareService(nil, listings, oracle, nil)

	debug, err := svc.DebugListing(context.Background(), "https://topdeck.ru/x")
	if err != nil {
		t.Fatalf("DebugListing() error = %v", err)
	}
	if debug.Title != "Продам" || len(debug.Entries) != 4 {
		t.Fatalf("unexpected debug view %+v", debug)
	}
	if debug.Entries[1].OracleID != "o-bolt" || debug.Entries[2].OracleID != "" {
		t.Errorf("oracle ids = %q, %q", debug.Entries[1].OracleID, debug.Entries[2].OracleID)
	}
	if debug.Entries[0].RawLine != "Lightning Bolt - 150 руб" {
		t.Errorf("RawLine = %q", debug.Entries[0].RawLine)
	}
}

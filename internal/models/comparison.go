package models

import (
	"time"
)

// CardComparison is one wishlist card with every listing offering it.
type CardComparison struct {
	Name        string                 `json:"name"`
	OracleID    string                 `json:"oracle_id,omitempty"`
	ImageURL    string                 `json:"image_url,omitempty"`
	ImageURLs   []string               `json:"image_urls"`
	EURPrice    *float64               `json:"eur_price,omitempty"`
	Tags        []string               `json:"tags"`
	WishlistQty int                    `json:"wishlist_qty"`
	Listings    []ResolvedListingEntry `json:"listings"`
}

// CheapestListing returns the lowest listing price, or false when the card
// is not listed.
func (c CardComparison) CheapestListing() (float64, bool) {
	if len(c.Listings) == 0 {
		return 0, false
	}
	cheapest := c.Listings[0].Price
	for _, l := range c.Listings[1:] {
		if l.Price < cheapest {
			cheapest = l.Price
		}
	}
	return cheapest, true
}

// ComparisonResult is the full wishlist vs listing report.
type ComparisonResult struct {
	RunID           string           `json:"run_id"`
	DeckName        string           `json:"deck_name"`
	DeckAuthor      string           `json:"deck_author"`
	ListingTitle    string           `json:"listing_title"`
	ListingAuthor   string           `json:"listing_author"`
	ListingAuthorID string           `json:"listing_author_id"`
	Rows            []CardComparison `json:"rows"`
	TotalCards      int              `json:"total_cards"`
	ListedCards     int              `json:"listed_cards"`
	UnresolvedCards int              `json:"unresolved_cards"`
	ResolverMisses  int              `json:"resolver_misses"`
	ListingTotal    float64          `json:"listing_total"`
}

// ComparisonRun stores the summary of a finished comparison for history.
type ComparisonRun struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	WishlistURL     string    `json:"wishlist_url" gorm:"not null"`
	ListingURL      string    `json:"listing_url" gorm:"not null;index"`
	DeckName        string    `json:"deck_name"`
	ListingTitle    string    `json:"listing_title"`
	TotalCards      int       `json:"total_cards"`
	ListedCards     int       `json:"listed_cards"`
	UnresolvedCards int       `json:"unresolved_cards"`
	ResolverMisses  int       `json:"resolver_misses"`
	ListingTotal    float64   `json:"listing_total"`
	OracleMode      string    `json:"oracle_mode"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}

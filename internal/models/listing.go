package models

// ListingEntry is one priced line extracted from a forum listing.
type ListingEntry struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity *int    `json:"quantity,omitempty"`
	RawLine  string  `json:"rawLine"`
}

// ListingPage is a parsed forum topic.
type ListingPage struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Author   string         `json:"author"`
	AuthorID string         `json:"authorId"`
	Entries  []ListingEntry `json:"entries"`
}

// ResolvedListingEntry is a listing entry joined with its resolved identity.
type ResolvedListingEntry struct {
	ListingEntry
	OracleID string `json:"oracleId,omitempty"`
}

// ListingDebug shows what the parser extracted from a listing page.
type ListingDebug struct {
	URL     string                 `json:"url"`
	Title   string                 `json:"title"`
	Entries []ResolvedListingEntry `json:"entries"`
}

package models

// WishlistCard is a card requested by the wishlist owner.
type WishlistCard struct {
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Tags     []string `json:"tags"`
}

// Wishlist is a fetched deck export.
type Wishlist struct {
	DeckName string         `json:"deck_name"`
	Author   string         `json:"author"`
	Cards    []WishlistCard `json:"cards"`
}

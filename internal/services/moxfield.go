package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/priboy68rus/topdeck-compare/internal/models"
)

const (
	moxfieldDeckAPI = "https://api2.moxfield.com/v3/decks/all/"
	readerProxyURL  = "https://r.jina.ai/"
	readerMarker    = "Markdown Content:"
)

var (
	// ErrInvalidDeckURL is returned for links that are not Moxfield deck pages.
	ErrInvalidDeckURL = errors.New("invalid Moxfield deck URL")
	// ErrUnexpectedWishlistFormat is returned when the proxied deck payload is
	// not JSON.
	ErrUnexpectedWishlistFormat = errors.New("unexpected Moxfield response format")
)

type moxfieldUser struct {
	UserName    string `json:"userName"`
	DisplayName string `json:"displayName"`
}

type moxfieldEntry struct {
	Quantity *int     `json:"quantity"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Card     *struct {
		Name string `json:"name"`
	} `json:"card"`
}

type moxfieldBoard struct {
	Cards map[string]moxfieldEntry `json:"cards"`
}

type moxfieldDeck struct {
	Name          string                    `json:"name"`
	CreatedByUser *moxfieldUser             `json:"createdByUser"`
	CreatedBy     string                    `json:"createdBy"`
	UserName      string                    `json:"userName"`
	Boards        map[string]*moxfieldBoard `json:"boards"`
	Tags          map[string][]string       `json:"tags"`
	TaggedCards   map[string][]string       `json:"taggedCards"`
	AuthorTags    map[string][]string       `json:"authorTags"`
}

// MoxfieldService fetches deck exports used as wishlists. Moxfield blocks
// direct API calls from servers, so requests go through a reader proxy.
type MoxfieldService struct {
	client   *http.Client
	proxyURL string
	deckAPI  string
}

func NewMoxfieldService(timeout time.Duration) *MoxfieldService {
	return &MoxfieldService{
		client: &http.Client{
			Timeout: timeout,
		},
		proxyURL: readerProxyURL,
		deckAPI:  moxfieldDeckAPI,
	}
}

// ParseMoxfieldDeckID extracts the deck id from a /decks/<id> URL.
func ParseMoxfieldDeckID(deckURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(deckURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", ErrInvalidDeckURL
	}
	var parts []string
	for _, p := range strings.Split(parsed.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 || parts[0] != "decks" {
		return "", ErrInvalidDeckURL
	}
	return parts[1], nil
}

// FetchWishlist downloads a deck and flattens its boards into one card list.
func (s *MoxfieldService) FetchWishlist(ctx context.Context, deckURL string) (*models.Wishlist, error) {
	deckID, err := ParseMoxfieldDeckID(deckURL)
	if err != nil {
		return nil, err
	}

	log.Printf("Fetching Moxfield deck %s", deckID)
	deck, err := s.fetchDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	wishlist := buildWishlist(deck, deckID)
	log.Printf("Parsed Moxfield wishlist %s: %d cards", deckID, len(wishlist.Cards))
	return wishlist, nil
}

func (s *MoxfieldService) fetchDeck(ctx context.Context, deckID string) (*moxfieldDeck, error) {
	reqURL := s.proxyURL + s.deckAPI + url.PathEscape(deckID)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Moxfield deck: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch Moxfield deck (%d)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Moxfield response: %w", err)
	}

	var deck moxfieldDeck
	if err := json.Unmarshal([]byte(extractReaderPayload(string(body))), &deck); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedWishlistFormat, err)
	}
	return &deck, nil
}

// extractReaderPayload returns the text after the proxy's content marker, or
// the whole body when the marker is missing.
func extractReaderPayload(body string) string {
	if i := strings.Index(body, readerMarker); i >= 0 {
		return strings.TrimSpace(body[i+len(readerMarker):])
	}
	return strings.TrimSpace(body)
}

func buildWishlist(deck *moxfieldDeck, deckID string) *models.Wishlist {
	wishlist := &models.Wishlist{
		DeckName: deck.Name,
		Author:   deckAuthor(deck),
		Cards:    []models.WishlistCard{},
	}
	if wishlist.DeckName == "" {
		wishlist.DeckName = deckID
	}

	boardNames := make([]string, 0, len(deck.Boards))
	for name := range deck.Boards {
		boardNames = append(boardNames, name)
	}
	sort.Strings(boardNames)

	byName := make(map[string]int)
	for _, boardName := range boardNames {
		board := deck.Boards[boardName]
		// Tokens are not something anyone shops for.
		if board == nil || boardName == "tokens" {
			continue
		}

		keys := make([]string, 0, len(board.Cards))
		for k := range board.Cards {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			entry := board.Cards[k]
			name := entry.Name
			if entry.Card != nil && entry.Card.Name != "" {
				name = entry.Card.Name
			}
			if name == "" {
				continue
			}
			quantity := 1
			if entry.Quantity != nil {
				quantity = *entry.Quantity
			}
			tags := firstTags(entry.Tags, deck.Tags[name], deck.TaggedCards[name], deck.AuthorTags[name])

			key := strings.ToLower(name)
			if i, ok := byName[key]; ok {
				existing := &wishlist.Cards[i]
				existing.Quantity += quantity
				existing.Tags = mergeTags(existing.Tags, tags)
				continue
			}
			byName[key] = len(wishlist.Cards)
			wishlist.Cards = append(wishlist.Cards, models.WishlistCard{
				Name:     name,
				Quantity: quantity,
				Tags:     mergeTags(nil, tags),
			})
		}
	}
	return wishlist
}

func deckAuthor(deck *moxfieldDeck) string {
	if u := deck.CreatedByUser; u != nil {
		if u.DisplayName != "" {
			return u.DisplayName
		}
		if u.UserName != "" {
			return u.UserName
		}
	}
	if deck.CreatedBy != "" {
		return deck.CreatedBy
	}
	return deck.UserName
}

func firstTags(candidates ...[]string) []string {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func mergeTags(existing, extra []string) []string {
	out := append([]string{}, existing...)
	for _, t := range extra {
		if !containsString(out, t) {
			out = append(out, t)
		}
	}
	return out
}

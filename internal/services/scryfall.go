package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const scryfallBaseURL = "https://api.scryfall.com"

// ScryfallCard is one printing from the Scryfall default_cards dataset,
// projected down to the fields the oracle index needs. The same shape is used
// for API responses.
type ScryfallCard struct {
	ImageURIs    *scryfallImages `json:"image_uris,omitempty"`
	CardFaces    []scryfallFace  `json:"card_faces,omitempty"`
	Prices       scryfallPrices  `json:"prices"`
	ID           string          `json:"id,omitempty"`
	OracleID     string          `json:"oracle_id,omitempty"`
	Name         string          `json:"name,omitempty"`
	PrintedName  string          `json:"printed_name,omitempty"`
	Lang         string          `json:"lang,omitempty"`
	ReleasedAt   string          `json:"released_at,omitempty"`
	Set          string          `json:"set,omitempty"`
	SetType      string          `json:"set_type,omitempty"`
	BorderColor  string          `json:"border_color,omitempty"`
	Frame        string          `json:"frame,omitempty"`
	Finishes     []string        `json:"finishes,omitempty"`
	FrameEffects []string        `json:"frame_effects,omitempty"`
	Games        []string        `json:"games,omitempty"`
	FullArt      bool            `json:"full_art,omitempty"`
	Promo        bool            `json:"promo,omitempty"`
}

type scryfallImages struct {
	Small  string `json:"small,omitempty"`
	Normal string `json:"normal,omitempty"`
	Large  string `json:"large,omitempty"`
}

// preferred returns the normal image, falling back to large.
func (i *scryfallImages) preferred() string {
	if i == nil {
		return ""
	}
	if i.Normal != "" {
		return i.Normal
	}
	return i.Large
}

type scryfallFace struct {
	ImageURIs   *scryfallImages `json:"image_uris,omitempty"`
	Name        string          `json:"name,omitempty"`
	PrintedName string          `json:"printed_name,omitempty"`
}

// EUR is nullable upstream; nil means no price.
type scryfallPrices struct {
	EUR *string `json:"eur"`
}

type scryfallSearchResponse struct {
	Data   []ScryfallCard `json:"data"`
	Object string         `json:"object"`
}

// ScryfallService talks to the public Scryfall API.
type ScryfallService struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewScryfallService creates a client limited to requestsPerSecond.
func NewScryfallService(timeout time.Duration, requestsPerSecond float64) *ScryfallService {
	return &ScryfallService{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: scryfallBaseURL,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// GetCardNamed does a fuzzy name lookup. Returns nil, nil if the card is not
// found (404).
func (s *ScryfallService) GetCardNamed(ctx context.Context, name string) (*ScryfallCard, error) {
	reqURL := fmt.Sprintf("%s/cards/named?fuzzy=%s", s.baseURL, url.QueryEscape(name))

	var sc ScryfallCard
	found, err := s.getJSON(ctx, reqURL, &sc)
	if err != nil || !found {
		return nil, err
	}
	return &sc, nil
}

// SearchPaperPrinting returns the most recent paper printing with exactly this
// name. Returns nil, nil when there is none.
func (s *ScryfallService) SearchPaperPrinting(ctx context.Context, name string) (*ScryfallCard, error) {
	// Escape quotes for Scryfall query syntax.
	safeName := strings.ReplaceAll(name, "\"", "\\\"")
	query := fmt.Sprintf(`!"%s" game:paper`, safeName)
	reqURL := fmt.Sprintf("%s/cards/search?order=released&dir=desc&unique=prints&q=%s", s.baseURL, url.QueryEscape(query))

	var searchResp scryfallSearchResponse
	found, err := s.getJSON(ctx, reqURL, &searchResp)
	if err != nil || !found || len(searchResp.Data) == 0 {
		return nil, err
	}
	return &searchResp.Data[0], nil
}

// FindCard resolves a name the way a user would on the website: fuzzy match
// first, then an exact paper search when the match is digital-only.
func (s *ScryfallService) FindCard(ctx context.Context, name string) (*ScryfallCard, error) {
	card, err := s.GetCardNamed(ctx, name)
	if err != nil {
		return nil, err
	}
	if card != nil && (len(card.Games) == 0 || containsString(card.Games, "paper")) {
		return card, nil
	}

	paper, err := s.SearchPaperPrinting(ctx, name)
	if err != nil {
		return nil, err
	}
	if paper != nil {
		return paper, nil
	}
	return card, nil
}

func (s *ScryfallService) getJSON(ctx context.Context, reqURL string, target any) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query scryfall: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("scryfall API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, fmt.Errorf("failed to decode scryfall response: %w", err)
	}
	return true, nil
}

// imagesForCard returns one image per face, or the shared image when faces
// carry none.
func imagesForCard(card *ScryfallCard) []string {
	images := []string{}
	for _, face := range card.CardFaces {
		if uri := face.ImageURIs.preferred(); uri != "" {
			images = append(images, uri)
		}
	}
	// Some multi-face layouts (e.g. Rooms) only have a shared image.
	if len(images) == 0 {
		if uri := card.ImageURIs.preferred(); uri != "" {
			images = append(images, uri)
		}
	}
	return images
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

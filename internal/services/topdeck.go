package services

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/priboy68rus/topdeck-compare/internal/metrics"
	"github.com/priboy68rus/topdeck-compare/internal/models"
)

const (
	userAgent = "Mozilla/5.0 (compatible; TopdeckCompare/1.0)"

	listingCacheSize = 256
)

// ErrListingFetch is returned when a listing page cannot be downloaded.
var ErrListingFetch = errors.New("failed to fetch listing page")

var (
	contentSelectors = []string{
		".cPost_contentWrap",
		".ipsType_richText",
		".entry-content",
		".cPost_contentInner",
		"article",
		"body",
	}
	authorSelectors = []string{
		".cAuthorPane_author a",
		"[itemprop='author'] a",
		"a[href*='/profile/']",
	}

	numericRunRe = regexp.MustCompile(`[0-9][0-9\s.,]*`)
	currencyRe   = regexp.MustCompile(`(?i)([0-9][0-9\s.,]*)\s*(?:(₽)|(руб\p{L}*|rub(?:les?)?)(?:$|[^\p{L}]))`)
	leadingNumRe = regexp.MustCompile(`^(?:\d+(?:\.\d*)?|\.\d+)`)
	profileIDRe  = regexp.MustCompile(`/profile/(\d+)-`)

	listingBulletRe    = regexp.MustCompile(`^[\s•·\-\x{2013}\x{2014}]+`)
	listingQtyPrefixRe = regexp.MustCompile(`^(?:\d+\s*[xXхХ×]?|[xXхХ×]\s*\d+)\s+`)
	listingQtySuffixRe = regexp.MustCompile(`\s+[xXхХ×]?\d+\s*$`)
	trailingDashRe     = regexp.MustCompile(`[\s\-\x{2013}\x{2014}:]+$`)
	bracketedRe        = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	conditionCodeRe    = regexp.MustCompile(`\b(?:NM|SP|MP|HP|LP|EX|PL|DMG)\b`)
	multiSpaceRe       = regexp.MustCompile(`\s+`)
)

// Trailing tokens that describe the copy rather than name the card.
var listingQualifiers = union(
	wordSet("nm", "sp", "mp", "hp", "lp", "ex", "pl", "dmg", "mint", "фойл", "фоил", "фольга"),
	simpleDescriptors,
	simpleLanguages,
	extendedLanguages,
)

// TopdeckService fetches and parses Topdeck forum listings.
type TopdeckService struct {
	client  *http.Client
	limiter *rate.Limiter
	cache   *expirable.LRU[string, *models.ListingPage]
	group   singleflight.Group
}

// NewTopdeckService creates a listing client. Parsed pages are cached for ttl.
func NewTopdeckService(timeout, ttl time.Duration, requestsPerSecond float64) *TopdeckService {
	return &TopdeckService{
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		cache:   expirable.NewLRU[string, *models.ListingPage](listingCacheSize, nil, ttl),
	}
}

// FetchListing downloads and parses a listing page. Pages are cached per URL;
// the returned page is shared and must not be modified.
func (s *TopdeckService) FetchListing(ctx context.Context, pageURL string) (*models.ListingPage, error) {
	if page, ok := s.cache.Get(pageURL); ok {
		metrics.ListingFetchesTotal.WithLabelValues("cache_hit").Inc()
		return page, nil
	}

	v, err, _ := s.group.Do(pageURL, func() (any, error) {
		if page, ok := s.cache.Get(pageURL); ok {
			return page, nil
		}
		log.Printf("Fetching listing page %s", pageURL)
		html, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			metrics.ListingFetchesTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		metrics.ListingFetchesTotal.WithLabelValues("success").Inc()

		page, err := ParseListingPage(html)
		if err != nil {
			return nil, err
		}
		page.URL = pageURL
		metrics.ListingEntriesParsed.Observe(float64(len(page.Entries)))
		log.Printf("Parsed %d listing entries from %s", len(page.Entries), pageURL)

		s.cache.Add(pageURL, page)
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ListingPage), nil
}

func (s *TopdeckService) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrListingFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w (%d)", ErrListingFetch, resp.StatusCode)
	}

	reader, err := decodedBody(resp)
	if err != nil {
		return "", fmt.Errorf("failed to create reader: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read listing page: %w", err)
	}
	return string(body), nil
}

// decodedBody unwraps the encodings we advertise. The transport only handles
// gzip transparently when it set Accept-Encoding itself.
func decodedBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// ParseListingPage extracts the post text, title, author and entries from a
// forum topic.
func ParseListingPage(html string) (*models.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	page := &models.ListingPage{
		Title: pageTitle(doc),
	}
	page.Author, page.AuthorID = pageAuthor(doc)
	page.Entries = ParseListingText(pickContent(doc))
	return page, nil
}

// PickListingContent returns the text of the first non-empty post container.
func PickListingContent(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return pickContent(doc)
}

func pickContent(doc *goquery.Document) string {
	// Keep visual line breaks in the rendered text.
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div, tr").AppendHtml("\n")

	for _, selector := range contentSelectors {
		candidate := doc.Find(selector).First()
		if candidate.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(candidate.Text()); text != "" {
			return text
		}
	}
	return doc.Find("body").Text()
}

func pageTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("h1.ipsType_pageTitle").First().Text()); title != "" {
		return multiSpaceRe.ReplaceAllString(title, " ")
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func pageAuthor(doc *goquery.Document) (string, string) {
	for _, selector := range authorSelectors {
		link := doc.Find(selector).First()
		if link.Length() == 0 {
			continue
		}
		name := strings.TrimSpace(link.Text())
		if name == "" {
			continue
		}
		var id string
		if href, ok := link.Attr("href"); ok {
			if m := profileIDRe.FindStringSubmatch(href); m != nil {
				id = m[1]
			}
		}
		return name, id
	}
	return "", ""
}

// ParseListingText extracts priced entries from listing prose, one per line,
// in source order. Lines without a number are skipped.
func ParseListingText(text string) []models.ListingEntry {
	normalized := strings.NewReplacer(
		"\r", "",
		"\t", " ",
		"•", "\n",
		"\u00a0", " ",
	).Replace(text)

	entries := []models.ListingEntry{}
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if entry, ok := parseListingLine(line); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func parseListingLine(line string) (models.ListingEntry, bool) {
	runs := numericRunRe.FindAllStringIndex(line, -1)
	if len(runs) == 0 {
		return models.ListingEntry{}, false
	}

	// A number tagged with the currency wins over the last number in the line.
	var priceStart, priceEnd, afterStart int
	if m := currencyRe.FindStringSubmatchIndex(line); m != nil {
		priceStart, priceEnd = m[2], m[3]
		// Group 2 is the ruble sign, group 3 the currency word.
		afterStart = m[5]
		if m[4] < 0 {
			afterStart = m[7]
		}
	} else {
		last := runs[len(runs)-1]
		priceStart, priceEnd, afterStart = last[0], last[1], last[1]
	}

	price, ok := parsePrice(line[priceStart:priceEnd])
	if !ok {
		return models.ListingEntry{}, false
	}

	before := trailingDashRe.ReplaceAllString(strings.TrimSpace(line[:priceStart]), "")
	source := strings.TrimSpace(before)
	if source == "" {
		source = strings.TrimSpace(line[afterStart:])
	}
	name := cleanListingName(source)
	if name == "" {
		return models.ListingEntry{}, false
	}

	entry := models.ListingEntry{
		Name:    name,
		Price:   price,
		RawLine: line,
	}
	// A number opening the line is the quantity, even when it is also the price.
	if first := runs[0]; first[0] == 0 {
		if qty, ok := parsePrice(line[first[0]:first[1]]); ok {
			q := int(math.Round(qty))
			entry.Quantity = &q
		}
	}
	return entry, true
}

// parsePrice reads a numeric run. Spaces are thousands separators and the
// first comma is the decimal point; anything after the leading number is
// ignored.
func parsePrice(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	normalized := strings.Replace(b.String(), ",", ".", 1)
	lead := leadingNumRe.FindString(normalized)
	if lead == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(lead, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// cleanListingName strips quantities, bullets, brackets and trailing
// condition, language and set tokens from a listing name.
func cleanListingName(raw string) string {
	s := listingBulletRe.ReplaceAllString(raw, "")
	s = listingQtyPrefixRe.ReplaceAllString(s, "")
	s = listingBulletRe.ReplaceAllString(s, "")
	if unbracketed := strings.TrimSpace(bracketedRe.ReplaceAllString(s, " ")); unbracketed != "" {
		s = unbracketed
	} else {
		s = strings.Trim(s, "()[] ")
	}
	s = listingQtySuffixRe.ReplaceAllString(s, "")
	s = trailingDashRe.ReplaceAllString(s, "")

	tokens := strings.Fields(s)
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if listingQualifiers[strings.ToLower(last)] || setCodePattern.MatchString(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	s = strings.Join(tokens, " ")

	if stripped := strings.TrimSpace(conditionCodeRe.ReplaceAllString(s, " ")); stripped != "" {
		s = stripped
	}
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(trailingDashRe.ReplaceAllString(s, ""))
}

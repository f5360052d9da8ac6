package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/priboy68rus/topdeck-compare/internal/models"
)

func init() {
	color.NoColor = true
}

const savedTopic = `<html><head><title>Продам | Topdeck</title></head><body>
<h1 class="ipsType_pageTitle">Продам карты</h1>
<div class="cPost_contentWrap">Lightning Bolt - 150 руб<br>2x Sol Ring (C21) - 80₽</div>
</body></html>`

func TestReadListingFile(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "topic.html")
	textPath := filepath.Join(dir, "post.txt")
	if err := os.WriteFile(htmlPath, []byte(savedTopic), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(textPath, []byte("Counterspell 50 руб\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	page, err := readListingFile(htmlPath, false)
	if err != nil {
		t.Fatalf("readListingFile() error = %v", err)
	}
	if page.Title != "Продам карты" || len(page.Entries) != 2 || page.URL != htmlPath {
		t.Errorf("unexpected page %+v", page)
	}

	page, err = readListingFile(textPath, false)
	if err != nil {
		t.Fatalf("readListingFile() error = %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].Name != "Counterspell" {
		t.Errorf("unexpected text entries %+v", page.Entries)
	}

	if _, err := readListingFile(filepath.Join(dir, "missing.html"), false); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintListing(t *testing.T) {
	qty := 2
	page := &models.ListingPage{
		Title:  "Продам карты",
		Author: "vasya",
		Entries: []models.ListingEntry{
			{Name: "Lightning Bolt", Price: 150},
			{Name: "Sol Ring", Price: 80, Quantity: &qty},
		},
	}
	resolved := map[string]models.OracleData{"Lightning Bolt": {OracleID: "o-bolt"}}

	var buf bytes.Buffer
	printListing(&buf, page, resolved)
	out := buf.String()

	for _, want := range []string{"Продам карты", "Seller: vasya", "Lightning Bolt  150 ₽  o-bolt", "2x Sol Ring  80 ₽  unresolved", "2 entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResolution(t *testing.T) {
	price := 1.5
	var buf bytes.Buffer
	printResolution(&buf, "Lightning Bolt", models.OracleData{OracleID: "o-bolt", ImageURLs: []string{"bolt.jpg"}, EURPrice: &price})
	printResolution(&buf, "Nothing", models.Unresolved())

	out := buf.String()
	if !strings.Contains(out, "✓  Lightning Bolt  o-bolt  €1.50  bolt.jpg") {
		t.Errorf("resolved line missing:\n%s", out)
	}
	if !strings.Contains(out, "✗  Nothing") {
		t.Errorf("unresolved line missing:\n%s", out)
	}
}

func TestPrintComparison(t *testing.T) {
	result := &models.ComparisonResult{
		DeckName:      "Wishlist",
		DeckAuthor:    "vasya",
		ListingTitle:  "Продам",
		ListingAuthor: "seller",
		Rows: []models.CardComparison{
			{Name: "Lightning Bolt", OracleID: "o-bolt", WishlistQty: 2, Listings: []models.ResolvedListingEntry{
				{ListingEntry: models.ListingEntry{Price: 150}}, {ListingEntry: models.ListingEntry{Price: 120}},
			}},
			{Name: "Mystery Card", WishlistQty: 1, Listings: []models.ResolvedListingEntry{}},
			{Name: "Sol Ring", OracleID: "o-ring", WishlistQty: 1, Listings: []models.ResolvedListingEntry{}},
		},
		TotalCards:      3,
		ListedCards:     1,
		UnresolvedCards: 1,
		ListingTotal:    240,
	}

	var buf bytes.Buffer
	printComparison(&buf, result, false)
	out := buf.String()
	for _, want := range []string{"2x Lightning Bolt  120 ₽ (2 offers)", "?  1x Mystery Card  unresolved", "   1x Sol Ring", "1 of 3 cards listed", "total 240.00 ₽"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printComparison(&buf, result, true)
	if strings.Contains(buf.String(), "Sol Ring") {
		t.Errorf("--listed should hide unlisted cards:\n%s", buf.String())
	}
}

func TestListingCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topic.html")
	if err := os.WriteFile(path, []byte(savedTopic), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs([]string{"listing", path})
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetArgs(nil)
	})

	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("listing command error = %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "Lightning Bolt") || !strings.Contains(out, "2 entries") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

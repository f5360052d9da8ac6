package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/priboy68rus/topdeck-compare/internal/models"
)

// OracleIndex maps normalized card names to oracle ids and holds the
// representative image and price for each oracle id. It is immutable once
// built.
type OracleIndex struct {
	names       map[string]string
	projections map[string]models.OracleData
}

// PrintingScore ranks printings of one card. Fields are compared in order,
// higher first.
type PrintingScore struct {
	Print    int
	Set      int
	Released int64
	Frame    int
}

// Less reports whether s ranks below o.
func (s PrintingScore) Less(o PrintingScore) bool {
	if s.Print != o.Print {
		return s.Print < o.Print
	}
	if s.Set != o.Set {
		return s.Set < o.Set
	}
	if s.Released != o.Released {
		return s.Released < o.Released
	}
	return s.Frame < o.Frame
}

var specialFrameEffects = map[string]bool{
	"extendedart": true,
	"showcase":    true,
	"borderless":  true,
	"etched":      true,
	"inverted":    true,
	"retro":       true,
}

// ScorePrinting computes the preference tuple for a printing.
func ScorePrinting(card *ScryfallCard) PrintingScore {
	return PrintingScore{
		Print:    printWeight(card),
		Set:      setWeight(card),
		Released: releaseTimestamp(card),
		Frame:    frameWeight(card),
	}
}

// setWeight is 0 for Secret Lair and promo/token sets.
func setWeight(card *ScryfallCard) int {
	if card.Set == "sld" {
		return 0
	}
	if card.SetType == "promo" || card.SetType == "token" {
		return 0
	}
	return 1
}

func printWeight(card *ScryfallCard) int {
	weight := 0
	if containsString(card.Finishes, "nonfoil") {
		weight += 3
	}
	for _, effect := range card.FrameEffects {
		if specialFrameEffects[effect] {
			weight -= 2
			break
		}
	}
	if card.FullArt {
		weight -= 2
	}
	if card.Promo || card.SetType == "promo" {
		weight -= 3
	}
	if card.Set == "sld" {
		weight -= 5
	}
	if card.BorderColor == "white" {
		weight -= 4
	}
	if containsString(card.Games, "paper") {
		weight += 4
	}
	if isDigitalOnly(card.Games) {
		weight -= 6
	}
	weight += setWeight(card) * 2
	return weight
}

func isDigitalOnly(games []string) bool {
	if len(games) == 0 {
		return false
	}
	for _, g := range games {
		if g != "arena" && g != "mtgo" {
			return false
		}
	}
	return true
}

func frameWeight(card *ScryfallCard) int {
	switch card.Frame {
	case "1993":
		return 1
	case "1997":
		return 2
	case "2003":
		return 3
	case "2015":
		return 4
	case "future":
		return 5
	default:
		return 0
	}
}

func releaseTimestamp(card *ScryfallCard) int64 {
	if card.ReleasedAt == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02", card.ReleasedAt)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// eurPrice parses the EUR price, reporting false for null or unparseable values.
func eurPrice(card *ScryfallCard) (float64, bool) {
	if card.Prices.EUR == nil || *card.Prices.EUR == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(*card.Prices.EUR)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// BuildOracleIndex groups printings by oracle id and selects the
// representative image and price for each.
//
// Names are registered in dataset order and a later printing overwrites an
// earlier one under the same key, so ambiguous names resolve to whichever
// card appears last.
func BuildOracleIndex(cards []ScryfallCard) *OracleIndex {
	idx := &OracleIndex{
		names:       make(map[string]string),
		projections: make(map[string]models.OracleData),
	}
	buckets := make(map[string][]*ScryfallCard)

	for i := range cards {
		card := &cards[i]
		if card.OracleID == "" {
			continue
		}
		buckets[card.OracleID] = append(buckets[card.OracleID], card)

		for _, name := range cardNames(card) {
			if key := CleanCardName(name); key != "" {
				idx.names[key] = card.OracleID
			}
		}
	}

	for oracleID, printings := range buckets {
		idx.projections[oracleID] = projectOracle(oracleID, printings)
	}
	return idx
}

func cardNames(card *ScryfallCard) []string {
	names := make([]string, 0, 2+2*len(card.CardFaces))
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	add(card.Name)
	add(card.PrintedName)
	for _, face := range card.CardFaces {
		add(face.Name)
		add(face.PrintedName)
	}
	return names
}

// rankPrintings sorts printings most preferred first. Equal scores fall back
// to the printing id so the order never depends on input order.
func rankPrintings(printings []*ScryfallCard) []*ScryfallCard {
	type scored struct {
		card  *ScryfallCard
		score PrintingScore
	}
	ranked := make([]scored, len(printings))
	for i, p := range printings {
		ranked[i] = scored{card: p, score: ScorePrinting(p)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].score, ranked[j].score
		if a != b {
			return b.Less(a)
		}
		return ranked[i].card.ID < ranked[j].card.ID
	})

	out := make([]*ScryfallCard, len(ranked))
	for i, r := range ranked {
		out[i] = r.card
	}
	return out
}

func projectOracle(oracleID string, printings []*ScryfallCard) models.OracleData {
	ranked := rankPrintings(printings)
	data := models.OracleData{OracleID: oracleID, ImageURLs: []string{}}

	for _, p := range ranked {
		if images := imagesForCard(p); len(images) > 0 {
			data.ImageURLs = images
			break
		}
	}
	for _, p := range ranked {
		if price, ok := eurPrice(p); ok {
			data.EURPrice = &price
			break
		}
	}
	return data
}

// Lookup resolves a raw name. The returned data is unresolved when the name
// is unknown.
func (idx *OracleIndex) Lookup(name string) models.OracleData {
	oracleID, ok := idx.names[CleanCardName(name)]
	if !ok {
		return models.Unresolved()
	}
	return idx.Projection(oracleID)
}

// Projection returns the representative data for an oracle id.
func (idx *OracleIndex) Projection(oracleID string) models.OracleData {
	data, ok := idx.projections[oracleID]
	if !ok {
		return models.Unresolved()
	}
	// Callers get their own slice; the index stays immutable.
	data.ImageURLs = append([]string{}, data.ImageURLs...)
	if data.EURPrice != nil {
		price := *data.EURPrice
		data.EURPrice = &price
	}
	return data
}

// Size returns the number of distinct oracle ids.
func (idx *OracleIndex) Size() int {
	return len(idx.projections)
}

// NameCount returns the number of registered name keys.
func (idx *OracleIndex) NameCount() int {
	return len(idx.names)
}

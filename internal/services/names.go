package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var setCodePattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]?$`)

// Qualifiers recognised by NormalizeForMatching.
var (
	simpleDescriptors = wordSet(
		"foil", "etched", "nonfoil", "alt", "promo", "prerelease", "signed",
	)
	simpleLanguages = wordSet(
		"en", "eng", "ru", "rus", "jp", "ja", "de", "fr", "es", "it", "pt", "cn", "ko",
	)
)

// Additional qualifiers recognised by CleanCardName on top of the simple set.
var (
	extendedDescriptors = wordSet(
		"altart", "borderless", "showcase", "extended", "retro", "textless", "serialized",
		"surge", "galaxy", "stamped", "misprint", "oversized",
		"фойл", "фоил", "фольга", "фольгированная", "этчед", "промо", "пререлиз",
		"подписанная", "подпись", "автограф",
		"フォイル", "プロモ",
	)
	extendedLanguages = wordSet(
		"ger", "deu", "fra", "fre", "spa", "esp", "ita", "por", "jpn", "zh", "chs", "cht", "zhs", "zht", "kor", "kr",
		"english", "russian", "japanese", "german", "french", "spanish", "italian", "portuguese",
		"chinese", "korean",
		"англ", "английская", "английский", "анг", "рус", "русская", "русский", "яп", "японская",
		"японский", "нем", "немецкая", "немецкий", "фр", "французская", "французский", "исп",
		"испанская", "испанский", "ит", "итальянская", "итальянский", "португальская",
		"португальский", "кит", "китайская", "китайский", "кор", "корейская", "корейский",
		"日本語", "英語", "中文", "한국어",
	)
)

type qualifierSet struct {
	descriptors map[string]bool
	languages   map[string]bool
}

var (
	simpleQualifiers   = qualifierSet{descriptors: simpleDescriptors, languages: simpleLanguages}
	extendedQualifiers = qualifierSet{
		descriptors: union(simpleDescriptors, extendedDescriptors),
		languages:   union(simpleLanguages, extendedLanguages),
	}
)

// CleanCardName turns a raw card name into the lookup key used by the oracle
// index. Trailing printing, language and set-code qualifiers are dropped, the
// rest is lowercased with everything except letters, digits and "/" folded to
// single spaces.
//
// An all-caps two to four letter final word is taken for a set code, so
// "GIANT OX" normalizes to "giant" while "Giant Ox" is kept intact.
func CleanCardName(raw string) string {
	return normalizeName(raw, extendedQualifiers)
}

// NormalizeForMatching is CleanCardName restricted to the simple qualifier
// set. It is used for cross-source name keys.
func NormalizeForMatching(raw string) string {
	return normalizeName(raw, simpleQualifiers)
}

func normalizeName(raw string, qs qualifierSet) string {
	// Punctuation is split out before the qualifier scan; otherwise "(foil)"
	// would survive the first pass and be stripped on the second.
	tokens := strings.Fields(foldPunctuation(norm.NFKC.String(raw)))
	tokens = trimQualifiers(tokens, qs)
	// Lowercasing can emit combining marks (e.g. for "İ"); fold once more so the
	// result is a fixed point.
	lowered := strings.ToLower(strings.Join(tokens, " "))
	return strings.Join(strings.Fields(foldPunctuation(lowered)), " ")
}

// trimQualifiers pops trailing qualifier tokens, always leaving at least one.
func trimQualifiers(tokens []string, qs qualifierSet) []string {
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		lower := strings.ToLower(last)

		// "alt art" is the only two-token descriptor.
		if lower == "art" && len(tokens) > 2 && strings.EqualFold(tokens[len(tokens)-2], "alt") {
			tokens = tokens[:len(tokens)-2]
			continue
		}
		if qs.descriptors[lower] || qs.languages[lower] || setCodePattern.MatchString(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	return tokens
}

func foldPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' {
			return r
		}
		return ' '
	}, s)
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func union(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}

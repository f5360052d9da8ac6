package services

import (
	"regexp"
	"strings"
)

var (
	sanitizeLeadingBullets = regexp.MustCompile(`^[\s•·\-\x{2013}\x{2014}+]+`)
	sanitizeLeadingQty     = regexp.MustCompile(`^(?:\d+\s*[xX×хХ]?|[xX×хХ]\s*\d+)\s+`)
	sanitizeTrailingPrice  = regexp.MustCompile(`(?i)\s*[-\x{2013}\x{2014}]\s*\d[\d\s.,]*(?:\s*(?:руб\.?|₽|rub))?\s*$`)
	sanitizeParens         = regexp.MustCompile(`\([^)]*\)`)
	sanitizeConditions     = regexp.MustCompile(`(?i)\b(?:NM|SP|MP|HP|LP|EX|promo|foil)\b`)
	sanitizeCommas         = regexp.MustCompile(`,+`)
	sanitizeSpaces         = regexp.MustCompile(`\s{2,}`)
)

// SanitizeListingName recovers a bare card name from a raw listing line so it
// can be re-resolved: bullets and quantities, a trailing "- 150 руб" price,
// parentheticals and condition or foil markers are removed.
func SanitizeListingName(raw string) string {
	s := sanitizeLeadingBullets.ReplaceAllString(raw, "")
	s = sanitizeLeadingQty.ReplaceAllString(s, "")
	s = sanitizeLeadingBullets.ReplaceAllString(s, "")
	s = sanitizeTrailingPrice.ReplaceAllString(s, "")
	s = sanitizeParens.ReplaceAllString(s, "")
	s = sanitizeConditions.ReplaceAllString(s, "")
	s = sanitizeCommas.ReplaceAllString(s, " ")
	s = sanitizeSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

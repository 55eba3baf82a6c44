// Package resolve matches free-text dealer and product names to records.
package resolve

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists business-form suffixes stripped during normalization.
// Longer forms come first so "PVT LTD" wins over "LTD".
var legalSuffixes = []string{
	" PRIVATE LIMITED", " PVT LTD", " PVT. LTD.", " PVT. LTD", " P LTD", " (P) LTD",
	" LIMITED", " LTD", " LTD.",
	" LLP", " L.L.P.",
	" AND CO", " & CO", " & CO.", " AND COMPANY",
	" INC", " INC.",
}

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// NormalizeName standardizes a name for matching by:
//  1. Folding accents to their base letters
//  2. Converting to uppercase
//  3. Removing a trailing business-form suffix (Pvt Ltd, LLP, & Co)
//  4. Replacing remaining punctuation with spaces
//  5. Collapsing whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(foldAccents(name))
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)
	name = multiSpaceRe.ReplaceAllString(name, " ")

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.ReplaceAll(name, "&", " AND ")
	name = strings.ReplaceAll(name, "'", "")
	name = punctRe.ReplaceAllString(name, " ")

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// foldAccents strips combining marks ("Café" -> "Cafe").
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// sortedTokens normalizes s and joins its words in sorted order.
func sortedTokens(s string) string {
	tokens := strings.Fields(NormalizeName(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

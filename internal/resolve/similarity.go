package resolve

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// TokenSortRatio scores two names in [0, 1] regardless of word order. Both
// names are normalized and their words sorted, then scored as
// 1 - editDistance/maxLen.
func TokenSortRatio(a, b string) float64 {
	sa, sb := sortedTokens(a), sortedTokens(b)
	la, lb := utf8.RuneCountInString(sa), utf8.RuneCountInString(sb)
	if la == 0 || lb == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(sa, sb))/float64(max(la, lb))
}

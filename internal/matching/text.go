package matching

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"this": true, "are": true, "was": true, "were": true, "has": true, "have": true,
	"had": true, "will": true, "his": true, "her": true, "their": true, "its": true,
	"into": true, "after": true, "before": true, "over": true, "about": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "out": true, "who": true,
	"what": true, "when": true, "how": true, "why": true, "new": true, "vs": true,
	"than": true, "then": true, "they": true, "them": true, "our": true, "your": true,
	"just": true, "more": true, "most": true, "off": true, "per": true, "via": true,
}

func isStopword(w string) bool {
	return stopwords[w]
}

// Tokens lowercases text, strips punctuation and drops stopwords and tokens of two
// characters or fewer.
func Tokens(text string) map[string]bool {
	set := make(map[string]bool)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len([]rune(w)) <= 2 || stopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| over the token sets of a and b.
func Jaccard(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if tb[w] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

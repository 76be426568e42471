package matching

import (
	"strings"
	"unicode"
)

// EntityMatcher scores how well two entity names refer to the same thing.
// A return of 1 is a full match, 0 no match.
type EntityMatcher interface {
	Name() string
	Match(a, b string) float64
}

// SubstringMatcher treats case-insensitive equality as a full match and containment
// of one name in the other as a half match ("James" in "LeBron James").
type SubstringMatcher struct{}

// Name implements EntityMatcher.
func (SubstringMatcher) Name() string { return "substring" }

// Match implements EntityMatcher.
func (SubstringMatcher) Match(a, b string) float64 {
	a, b = normalizeEntity(a), normalizeEntity(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.5
	}
	return 0
}

// ExactMatcher only accepts normalized full-name equality.
type ExactMatcher struct{}

// Name implements EntityMatcher.
func (ExactMatcher) Name() string { return "exact" }

// Match implements EntityMatcher.
func (ExactMatcher) Match(a, b string) float64 {
	a, b = normalizeEntity(a), normalizeEntity(b)
	if a != "" && a == b {
		return 1
	}
	return 0
}

// MatcherByName resolves a configured strategy, defaulting to SubstringMatcher.
func MatcherByName(name string) EntityMatcher {
	if strings.EqualFold(name, "exact") {
		return ExactMatcher{}
	}
	return SubstringMatcher{}
}

func normalizeEntity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// countMatches sums, for every wanted entity, its best match weight among have.
func countMatches(m EntityMatcher, wanted, have []string) float64 {
	total := 0.0
	for _, w := range wanted {
		best := 0.0
		for _, h := range have {
			if s := m.Match(w, h); s > best {
				best = s
				if best == 1 {
					break
				}
			}
		}
		total += best
	}
	return total
}

// ExtractEntities pulls proper-noun phrases out of free text: runs of capitalized words
// such as "Boston Celtics" or "LeBron James". Single capitalized words are kept when they
// are not common stopwords.
func ExtractEntities(text string) []string {
	seen := make(map[string]bool)
	var out []string
	var run []string

	flush := func() {
		if len(run) == 0 {
			return
		}
		phrase := strings.Join(run, " ")
		run = run[:0]
		if len(phrase) < 3 || (!strings.Contains(phrase, " ") && isStopword(strings.ToLower(phrase))) {
			return
		}
		key := strings.ToLower(phrase)
		if !seen[key] {
			seen[key] = true
			out = append(out, phrase)
		}
	}

	for _, raw := range strings.Fields(text) {
		word := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' })
		first := []rune(word)
		if len(first) > 0 && unicode.IsUpper(first[0]) {
			run = append(run, word)
		} else {
			flush()
		}
		if strings.ContainsAny(raw[len(raw)-1:], ".,;:!?|-") {
			flush()
		}
	}
	flush()
	return out
}

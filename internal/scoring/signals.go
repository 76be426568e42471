package scoring

import (
	"math"
	"strings"
	"time"
)

const defaultRecencyMaxDays = 30

// KeywordDensity is 0.7 x the fraction of keywords present in text plus 0.3 x keyword
// occurrences per 1000 words, capped at 10 and normalized to [0,1].
func KeywordDensity(text string, keywords []string) float64 {
	kws := normalizeKeywords(keywords)
	if len(kws) == 0 || strings.TrimSpace(text) == "" {
		return 0
	}
	lower := strings.ToLower(text)

	present, occurrences := 0, 0
	for _, kw := range kws {
		n := strings.Count(lower, kw)
		if n > 0 {
			present++
			occurrences += n
		}
	}

	words := len(strings.Fields(lower))
	perThousand := 0.0
	if words > 0 {
		perThousand = float64(occurrences) / float64(words) * 1000
	}
	if perThousand > 10 {
		perThousand = 10
	}

	return 0.7*float64(present)/float64(len(kws)) + 0.3*perThousand/10
}

// TitleRelevance is the fraction of keywords literally present in the title.
func TitleRelevance(title string, keywords []string) float64 {
	kws := normalizeKeywords(keywords)
	if len(kws) == 0 {
		return 0
	}
	lower := strings.ToLower(title)
	hits := 0
	for _, kw := range kws {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(kws))
}

// Recency is a step function of video age in days.
func Recency(published, now time.Time, maxDays int) float64 {
	if maxDays <= 0 {
		maxDays = defaultRecencyMaxDays
	}
	if published.IsZero() {
		return 0.3
	}
	age := now.Sub(published).Hours() / 24
	switch {
	case age <= 1:
		return 1.0
	case age <= 7:
		return 0.9
	case age <= 14:
		return 0.7
	case age <= float64(maxDays):
		return 0.5
	default:
		return 0.3
	}
}

// Engagement blends log-scaled views (70%) with the like ratio capped at 10% (30%).
func Engagement(views, likes int64) float64 {
	if views < 0 {
		views = 0
	}
	viewScore := math.Log10(float64(views)+1) / 7
	if viewScore > 1 {
		viewScore = 1
	}

	likeScore := 0.0
	if views > 0 && likes > 0 {
		ratio := float64(likes) / float64(views)
		if ratio > 0.1 {
			ratio = 0.1
		}
		likeScore = ratio / 0.1
	}
	return 0.7*viewScore + 0.3*likeScore
}

// CosineSimilarity returns the cosine of two vectors, or 0 when undefined.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// clamp01 maps NaN to fallback and bounds v to [0,1].
func clamp01(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

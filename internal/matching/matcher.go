// Package matching pairs news items with previously discovered clip candidates.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/timmy/sportsclips/internal/domain"
)

const (
	teamWeight   = 0.25
	playerWeight = 0.20
	topicWeight  = 0.15
	maxTeams     = 2
	maxPlayers   = 3
	maxTopics    = 2

	textWeight    = 0.25
	textThreshold = 0.3

	sameDayBonus   = 0.15
	threeDayBonus  = 0.10
	sevenDayBonus  = 0.05
	qualityCutoff  = 0.7
	qualityBoost   = 1.1
	defaultMinimum = 0.3
	defaultMax     = 5

	// PoolWindow is how far before the news item a clip may have been published.
	PoolWindow = 7 * 24 * time.Hour
	// PoolSize caps the candidate pool by stored relevance.
	PoolSize = 100
)

// Clip is the view of a candidate the matcher scores against.
type Clip struct {
	CandidateID    string
	Title          string
	Description    string
	PublishedAt    time.Time
	RelevanceScore float64
	Entities       []string // proper-noun phrases found in the clip text
	Topics         []string
}

// ClipFromCandidate builds a Clip from a stored candidate with its video loaded.
func ClipFromCandidate(c *domain.Candidate) Clip {
	clip := Clip{CandidateID: c.ID, RelevanceScore: c.RelevanceScore}
	if c.Video != nil {
		clip.Title = c.Video.Title
		clip.Description = c.Video.Description
		clip.PublishedAt = c.Video.PublishedAt
	}
	text := clip.Title + ". " + clip.Description
	for _, m := range c.Moments {
		text += ". " + m.Label
	}
	clip.Entities = ExtractEntities(text)
	for w := range Tokens(text) {
		clip.Topics = append(clip.Topics, w)
	}
	sort.Strings(clip.Topics)
	return clip
}

// Match is one accepted pairing.
type Match struct {
	CandidateID string
	Score       float64
	Reasons     []string
}

// Matcher scores clips against a news item.
type Matcher struct {
	entities   EntityMatcher
	minScore   float64
	maxMatches int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithEntityMatcher swaps the entity comparison strategy.
func WithEntityMatcher(m EntityMatcher) Option {
	return func(mt *Matcher) {
		if m != nil {
			mt.entities = m
		}
	}
}

// WithThreshold sets the exclusive minimum score for a match.
func WithThreshold(min float64) Option {
	return func(mt *Matcher) {
		if min > 0 {
			mt.minScore = min
		}
	}
}

// WithMaxMatches caps how many matches are kept.
func WithMaxMatches(n int) Option {
	return func(mt *Matcher) {
		if n > 0 {
			mt.maxMatches = n
		}
	}
}

// NewMatcher creates a Matcher with the substring strategy, threshold 0.3 and top 5.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{entities: SubstringMatcher{}, minScore: defaultMinimum, maxMatches: defaultMax}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Score computes the pairing score of one clip and the reasons behind it.
func (m *Matcher) Score(news *domain.NewsItem, clip Clip) (float64, []string) {
	var score float64
	var reasons []string

	if n := countMatches(m.entities, news.Teams, clip.Entities); n > 0 {
		score += teamWeight * math.Min(n, maxTeams)
		reasons = append(reasons, fmt.Sprintf("teams: %s", formatCount(n)))
	}
	if n := countMatches(m.entities, news.Players, clip.Entities); n > 0 {
		score += playerWeight * math.Min(n, maxPlayers)
		reasons = append(reasons, fmt.Sprintf("players: %s", formatCount(n)))
	}
	if n := countMatches(m.entities, news.Topics, clip.Topics); n > 0 {
		score += topicWeight * math.Min(n, maxTopics)
		reasons = append(reasons, fmt.Sprintf("topics: %s", formatCount(n)))
	}

	if sim := Jaccard(news.Headline, clip.Title+" "+clip.Description); sim > textThreshold {
		score += sim * textWeight
		reasons = append(reasons, fmt.Sprintf("text similarity %.2f", sim))
	}

	if bonus, label := temporalBonus(news.PublishedAt, clip.PublishedAt); bonus > 0 {
		score += bonus
		reasons = append(reasons, label)
	}

	if clip.RelevanceScore > qualityCutoff {
		score *= qualityBoost
		reasons = append(reasons, "high relevance clip")
	}

	return math.Min(score, 1), reasons
}

// Rank scores every clip and returns the accepted matches, best first.
func (m *Matcher) Rank(news *domain.NewsItem, clips []Clip) []Match {
	var out []Match
	for _, c := range clips {
		score, reasons := m.Score(news, c)
		if score <= m.minScore {
			continue
		}
		out = append(out, Match{CandidateID: c.CandidateID, Score: score, Reasons: reasons})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > m.maxMatches {
		out = out[:m.maxMatches]
	}
	return out
}

func temporalBonus(news, clip time.Time) (float64, string) {
	if news.IsZero() || clip.IsZero() {
		return 0, ""
	}
	n, c := news.UTC(), clip.UTC()
	if n.Year() == c.Year() && n.YearDay() == c.YearDay() {
		return sameDayBonus, "same day"
	}
	diff := n.Sub(c)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 3*24*time.Hour:
		return threeDayBonus, "within 3 days"
	case diff <= 7*24*time.Hour:
		return sevenDayBonus, "within 7 days"
	}
	return 0, ""
}

func formatCount(n float64) string {
	s := fmt.Sprintf("%.1f", n)
	return strings.TrimSuffix(s, ".0")
}

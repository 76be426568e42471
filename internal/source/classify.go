package source

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/timmy/sportsclips/internal/domain"
)

type keywordGroup struct {
	newsType domain.NewsType
	matcher  *ahocorasick.Matcher
}

// classifierGroups are evaluated in order; the first group with a hit wins.
var classifierGroups = buildGroups([]struct {
	t        domain.NewsType
	keywords []string
}{
	{domain.NewsTypeTrade, []string{"trade", "traded", "acquire", "acquired", "deal sends", "swap"}},
	{domain.NewsTypeInjury, []string{"injury", "injured", "out for", "questionable", "doubtful", "day-to-day", "sidelined", "hamstring", "concussion", "torn"}},
	{domain.NewsTypeBreaking, []string{"breaking", "just in", "report:", "sources say", "official:"}},
	{domain.NewsTypeBettingLine, []string{"odds", "spread", "moneyline", "over/under", "line moves", "line movement", "betting", "favorite", "underdog"}},
	{domain.NewsTypeGameResult, []string{"final score", "defeat", "defeats", "beat", "beats", "wins", "won", "victory", "loss to", "recap"}},
	{domain.NewsTypeRumor, []string{"rumor", "rumour", "linked to", "interest in", "could sign", "might", "expected to", "reportedly"}},
	{domain.NewsTypeSchedule, []string{"schedule", "kickoff", "tip-off", "postponed", "rescheduled", "fixture", "preview"}},
})

func buildGroups(defs []struct {
	t        domain.NewsType
	keywords []string
}) []keywordGroup {
	groups := make([]keywordGroup, 0, len(defs))
	for _, d := range defs {
		groups = append(groups, keywordGroup{
			newsType: d.t,
			matcher:  ahocorasick.NewStringMatcher(d.keywords),
		})
	}
	return groups
}

// Classify assigns a news type from headline and content keywords.
// Parameters:
//   - headline: item headline.
//   - content: optional body text.
// Returns:
//   - domain.NewsType: first matching group, or analysis.
func Classify(headline, content string) domain.NewsType {
	text := []byte(strings.ToLower(headline + " " + content))
	for _, g := range classifierGroups {
		// Match mutates per-matcher counters; the groups are shared by fetch workers
		if len(g.matcher.MatchThreadSafe(text)) > 0 {
			return g.newsType
		}
	}
	return domain.NewsTypeAnalysis
}

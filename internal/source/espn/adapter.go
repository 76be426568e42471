package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

const (
	defaultBaseURL  = "https://site.api.espn.com/apis/site/v2/sports"
	defaultSport    = "football"
	defaultLeague   = "nfl"
	defaultMaxItems = 50

	SectionNews   = "news"
	SectionScores = "scores"
)

// DefaultLimits is the local request budget for the ESPN site API.
var DefaultLimits = source.RateLimitConfig{Requests: 100, Window: time.Minute, MinDelay: 500 * time.Millisecond}

// Adapter implements source.Adapter and source.ResultsFetcher for the ESPN site API.
type Adapter struct {
	source.Base
	baseURL string
}

// NewAdapter creates a new ESPN adapter. An empty baseURL selects the public API.
func NewAdapter(baseURL string, clock source.Clock) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		Base:    source.NewBase(domain.SourceTypeESPNAPI, DefaultLimits, clock),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ValidateConfig checks {section: news|scores, sport?, league?}.
func (a *Adapter) ValidateConfig(config domain.JSONMap) source.ValidationResult {
	var errs, warnings []string
	switch config.String("section") {
	case SectionNews, SectionScores:
	case "":
		errs = append(errs, "section is required")
	default:
		errs = append(errs, `section must be "news" or "scores"`)
	}
	if config.String("sport") == "" {
		warnings = append(warnings, "sport not set, defaulting to "+defaultSport)
	}
	return source.NewValidation(errs, warnings)
}

type newsResponse struct {
	Articles []struct {
		ID          json.Number `json:"id"`
		Headline    string      `json:"headline"`
		Description string      `json:"description"`
		Published   string      `json:"published"`
		Byline      string      `json:"byline"`
		Type        string      `json:"type"`
		Links       struct {
			Web struct {
				Href string `json:"href"`
			} `json:"web"`
		} `json:"links"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"articles"`
}

type scoreboardResponse struct {
	Leagues []struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"leagues"`
	Events []struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Date         string    `json:"date"`
		Competitions []struct {
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Score    string `json:"score"`
				Team     struct {
					DisplayName string `json:"displayName"`
				} `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
		Status struct {
			Type struct {
				Name      string `json:"name"`
				Completed bool   `json:"completed"`
			} `json:"type"`
		} `json:"status"`
	} `json:"events"`
}

// Fetch returns news articles or, for the scores section, one game-result item per final
// game. The scores section also returns every decoded game in FetchResult.Results so the
// scoreboard is requested once per run.
func (a *Adapter) Fetch(ctx context.Context, src *domain.Source, opts source.FetchOptions) (*source.FetchResult, error) {
	var (
		items   []source.RawNewsItem
		results []domain.GameResult
	)
	if src.Config.String("section") == SectionScores {
		var err error
		results, err = a.scoreboard(ctx, src)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.Status != statusFinal {
				continue
			}
			items = append(items, source.RawNewsItem{
				ExternalID:  "game_" + r.ExternalID,
				Type:        domain.NewsTypeGameResult,
				Headline:    fmt.Sprintf("%s %d, %s %d (Final)", r.AwayTeam, r.AwayScore, r.HomeTeam, r.HomeScore),
				PublishedAt: r.PlayedAt,
			})
		}
	} else {
		var resp newsResponse
		if err := a.getJSON(ctx, a.endpoint(src, "news"), &resp); err != nil {
			return nil, err
		}
		for _, art := range resp.Articles {
			newsType := source.Classify(art.Headline, art.Description)
			if art.Type == "Recap" {
				newsType = domain.NewsTypeGameResult
			}
			image := ""
			if len(art.Images) > 0 {
				image = art.Images[0].URL
			}
			items = append(items, source.RawNewsItem{
				ExternalID:  source.ExternalIDFor(art.Headline, art.ID.String(), art.Links.Web.Href),
				Type:        newsType,
				Headline:    art.Headline,
				Content:     art.Description,
				URL:         art.Links.Web.Href,
				PublishedAt: parseTime(art.Published),
				Author:      art.Byline,
				ImageURL:    image,
			})
		}
	}

	out, hasMore := source.Finalize(items, source.FetchOptions{
		Since: opts.Since,
		Limit: source.EffectiveLimit(opts, src.Config, defaultMaxItems),
	})
	return &source.FetchResult{
		Items:              out,
		HasMore:            hasMore,
		RateLimitRemaining: a.RateLimitStatus().Remaining,
		Results:            results,
	}, nil
}

// FetchResults returns scoreboard games for a scores-section source and nothing for the
// news section.
func (a *Adapter) FetchResults(ctx context.Context, src *domain.Source) ([]domain.GameResult, error) {
	if src.Config.String("section") != SectionScores {
		return nil, nil
	}
	return a.scoreboard(ctx, src)
}

// scoreboard decodes started games. Games that have not started carry no score and are dropped.
func (a *Adapter) scoreboard(ctx context.Context, src *domain.Source) ([]domain.GameResult, error) {
	var resp scoreboardResponse
	if err := a.getJSON(ctx, a.endpoint(src, "scoreboard"), &resp); err != nil {
		return nil, err
	}
	league := ""
	if len(resp.Leagues) > 0 {
		league = resp.Leagues[0].Abbreviation
	}
	results := make([]domain.GameResult, 0, len(resp.Events))
	for _, ev := range resp.Events {
		status := statusOf(ev.Status.Type.Name, ev.Status.Type.Completed)
		if len(ev.Competitions) == 0 || status == statusScheduled {
			continue
		}
		r := domain.GameResult{
			OrgID:      src.OrgID,
			SourceID:   src.ID,
			ExternalID: ev.ID,
			Sport:      src.Sport,
			League:     league,
			PlayedAt:   parseTime(ev.Date),
			Status:     status,
		}
		for _, c := range ev.Competitions[0].Competitors {
			score, _ := strconv.Atoi(c.Score)
			if c.HomeAway == "home" {
				r.HomeTeam, r.HomeScore = c.Team.DisplayName, score
			} else {
				r.AwayTeam, r.AwayScore = c.Team.DisplayName, score
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// parseTime accepts RFC3339 with or without seconds.
func parseTime(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

const (
	statusFinal      = "final"
	statusInProgress = "in_progress"
	statusScheduled  = "scheduled"
)

func statusOf(name string, completed bool) string {
	switch {
	case completed:
		return statusFinal
	case name == "STATUS_IN_PROGRESS" || name == "STATUS_HALFTIME":
		return statusInProgress
	default:
		return statusScheduled
	}
}

func (a *Adapter) endpoint(src *domain.Source, resource string) string {
	sport := src.Config.String("sport")
	if sport == "" {
		sport = defaultSport
	}
	league := src.Config.String("league")
	if league == "" {
		league = defaultLeague
	}
	return fmt.Sprintf("%s/%s/%s/%s", a.baseURL, sport, league, resource)
}

func (a *Adapter) getJSON(ctx context.Context, url string, out interface{}) error {
	body, err := a.Get(ctx, url, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return source.NewFetchError(a.Kind, 0, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

const defaultMaxItems = 100

// RecommendedMinInterval is the shortest refresh interval the odds vendors tolerate.
const RecommendedMinInterval = 15 * time.Minute

// DefaultLimits is the local request budget for odds vendors.
var DefaultLimits = source.RateLimitConfig{Requests: 20, Window: time.Minute, MinDelay: 3 * time.Second}

// Event is a vendor-neutral betting event.
type Event struct {
	ID       string
	Name     string
	HomeTeam string
	AwayTeam string
	StartsAt time.Time
	// Markets maps market name to outcome label to line.
	Markets map[string]map[string]float64
}

// Vendor decodes one provider's wire format.
type Vendor interface {
	Kind() domain.SourceType
	Endpoint(baseURL, sport, league string) string
	Decode(body []byte) ([]Event, error)
}

// Adapter implements source.Adapter and source.OddsFetcher for one odds vendor.
type Adapter struct {
	source.Base
	vendor  Vendor
	baseURL string
}

// NewDraftKings creates the DraftKings adapter.
func NewDraftKings(baseURL string, clock source.Clock) *Adapter {
	if baseURL == "" {
		baseURL = "https://sportsbook.draftkings.com/api/odds/v1"
	}
	return newAdapter(draftKings{}, baseURL, clock)
}

// NewSportsGrid creates the SportsGrid adapter.
func NewSportsGrid(baseURL string, clock source.Clock) *Adapter {
	if baseURL == "" {
		baseURL = "https://api.sportsgrid.com/v1"
	}
	return newAdapter(sportsGrid{}, baseURL, clock)
}

func newAdapter(v Vendor, baseURL string, clock source.Clock) *Adapter {
	return &Adapter{
		Base:    source.NewBase(v.Kind(), DefaultLimits, clock),
		vendor:  v,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ValidateConfig checks {sport, league?}.
func (a *Adapter) ValidateConfig(config domain.JSONMap) source.ValidationResult {
	var errs []string
	if strings.TrimSpace(config.String("sport")) == "" {
		errs = append(errs, "sport is required")
	}
	return source.NewValidation(errs, nil)
}

// RecommendedMinInterval implements source.IntervalAdvisor.
func (a *Adapter) RecommendedMinInterval() time.Duration {
	return RecommendedMinInterval
}

// FetchEvents returns the decoded vendor events for a source.
func (a *Adapter) FetchEvents(ctx context.Context, src *domain.Source) ([]Event, error) {
	url := a.vendor.Endpoint(a.baseURL, src.Config.String("sport"), src.Config.String("league"))
	body, err := a.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	events, err := a.vendor.Decode(body)
	if err != nil {
		return nil, source.NewFetchError(a.Kind, 0, fmt.Errorf("decode odds: %w", err))
	}
	return events, nil
}

// Fetch yields one betting-line item per event and line set, plus the market snapshots of
// the same response in FetchResult.Odds. A moved line produces a new external id.
func (a *Adapter) Fetch(ctx context.Context, src *domain.Source, opts source.FetchOptions) (*source.FetchResult, error) {
	events, err := a.FetchEvents(ctx, src)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	items := make([]source.RawNewsItem, 0, len(events))
	for _, ev := range events {
		summary := summarize(ev.Markets)
		if summary == "" {
			continue
		}
		items = append(items, source.RawNewsItem{
			ExternalID:  fmt.Sprintf("%s:%s", ev.ID, summary),
			Type:        domain.NewsTypeBettingLine,
			Headline:    fmt.Sprintf("%s: %s", eventName(ev), summary),
			PublishedAt: now,
		})
	}
	out, hasMore := source.Finalize(items, source.FetchOptions{
		Since: opts.Since,
		Limit: source.EffectiveLimit(opts, src.Config, defaultMaxItems),
	})
	return &source.FetchResult{
		Items:              out,
		HasMore:            hasMore,
		RateLimitRemaining: a.RateLimitStatus().Remaining,
		Odds:               snapshots(src, events, now),
	}, nil
}

// FetchOdds requests the events again and returns one snapshot per event and market.
func (a *Adapter) FetchOdds(ctx context.Context, src *domain.Source) ([]domain.OddsSnapshot, error) {
	events, err := a.FetchEvents(ctx, src)
	if err != nil {
		return nil, err
	}
	return snapshots(src, events, time.Now().UTC()), nil
}

func snapshots(src *domain.Source, events []Event, captured time.Time) []domain.OddsSnapshot {
	snaps := make([]domain.OddsSnapshot, 0, len(events))
	for _, ev := range events {
		for _, market := range sortedKeys(ev.Markets) {
			lines := domain.JSONMap{}
			for label, line := range ev.Markets[market] {
				lines[label] = line
			}
			snaps = append(snaps, domain.OddsSnapshot{
				OrgID:      src.OrgID,
				SourceID:   src.ID,
				ExternalID: fmt.Sprintf("%s:%s:%d", ev.ID, market, captured.Unix()),
				Sport:      src.Sport,
				EventName:  eventName(ev),
				HomeTeam:   ev.HomeTeam,
				AwayTeam:   ev.AwayTeam,
				Market:     market,
				Lines:      lines,
				StartsAt:   ev.StartsAt,
				CapturedAt: captured,
			})
		}
	}
	return snaps
}

func eventName(ev Event) string {
	if ev.Name != "" {
		return ev.Name
	}
	return ev.AwayTeam + " @ " + ev.HomeTeam
}

// summarize renders markets deterministically, e.g. "moneyline Bears +150 / Packers -170; spread ...".
func summarize(markets map[string]map[string]float64) string {
	parts := make([]string, 0, len(markets))
	for _, market := range sortedKeys(markets) {
		outcomes := markets[market]
		labels := make([]string, 0, len(outcomes))
		for label := range outcomes {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		lines := make([]string, 0, len(labels))
		for _, label := range labels {
			lines = append(lines, label+" "+formatLine(outcomes[label]))
		}
		if len(lines) > 0 {
			parts = append(parts, market+" "+strings.Join(lines, " / "))
		}
	}
	return strings.Join(parts, "; ")
}

func formatLine(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v > 0 {
		return "+" + s
	}
	return s
}

func sortedKeys(m map[string]map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseTime(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func decodeJSON(body []byte, out interface{}) error {
	return json.Unmarshal(body, out)
}

package source

import (
	"context"
	"time"

	"github.com/timmy/sportsclips/internal/domain"
)

// RawNewsItem represents one normalized item returned by an adapter before persistence.
type RawNewsItem struct {
	ExternalID  string // Unique ID within the source
	Type        domain.NewsType
	Headline    string
	Content     string
	URL         string
	PublishedAt time.Time
	Author      string
	ImageURL    string
}

// FetchOptions bounds a single fetch call.
type FetchOptions struct {
	Since *time.Time // Drop items published before Since
	Limit int        // Zero means adapter default
}

// FetchResult is the outcome of one fetch call.
type FetchResult struct {
	Items              []RawNewsItem
	HasMore            bool
	RateLimitRemaining int

	// Odds and Results are filled by adapters that decode them from the same responses as
	// Items. nil means "not collected"; the caller may then ask OddsFetcher or ResultsFetcher.
	Odds    []domain.OddsSnapshot
	Results []domain.GameResult
}

// ValidationResult reports config problems. Errors block persistence, warnings do not.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// RateLimitStatus is a snapshot of an adapter's local request budget.
type RateLimitStatus struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// Adapter defines the uniform contract over every external content provider.
type Adapter interface {
	// Type returns the source type this adapter serves.
	// Parameters: none.
	// Returns:
	//   - domain.SourceType: adapter tag.
	Type() domain.SourceType

	// Fetch retrieves normalized items for the source.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - src: source record holding the adapter config.
	//   - opts: since/limit bounds.
	// Returns:
	//   - *FetchResult: deduplicated items, never nil on success.
	//   - error: *FetchError on transport or parse failure.
	Fetch(ctx context.Context, src *domain.Source, opts FetchOptions) (*FetchResult, error)

	// ValidateConfig checks a config blob before it is persisted.
	// Parameters:
	//   - config: adapter-specific configuration.
	// Returns:
	//   - ValidationResult: errors and non-blocking warnings.
	ValidateConfig(config domain.JSONMap) ValidationResult

	// RateLimitStatus returns the current local request budget.
	RateLimitStatus() RateLimitStatus
}

// OddsFetcher is implemented by adapters that expose betting markets.
type OddsFetcher interface {
	FetchOdds(ctx context.Context, src *domain.Source) ([]domain.OddsSnapshot, error)
}

// ResultsFetcher is implemented by adapters that expose game scores.
type ResultsFetcher interface {
	FetchResults(ctx context.Context, src *domain.Source) ([]domain.GameResult, error)
}

// IntervalAdvisor is implemented by adapters that recommend a minimum refresh interval.
type IntervalAdvisor interface {
	RecommendedMinInterval() time.Duration
}

// Finalize deduplicates items by ExternalID (first wins), drops items older than
// opts.Since and truncates to opts.Limit. hasMore is true when items were cut by the limit.
func Finalize(items []RawNewsItem, opts FetchOptions) (out []RawNewsItem, hasMore bool) {
	seen := make(map[string]struct{}, len(items))
	out = make([]RawNewsItem, 0, len(items))
	for _, item := range items {
		if item.ExternalID == "" {
			continue
		}
		if _, ok := seen[item.ExternalID]; ok {
			continue
		}
		if opts.Since != nil && !item.PublishedAt.IsZero() && item.PublishedAt.Before(*opts.Since) {
			continue
		}
		seen[item.ExternalID] = struct{}{}
		out = append(out, item)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		return out[:opts.Limit], true
	}
	return out, false
}

package registry

import (
	"fmt"
	"time"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
	"github.com/timmy/sportsclips/internal/source/browser"
	"github.com/timmy/sportsclips/internal/source/espn"
	"github.com/timmy/sportsclips/internal/source/odds"
	"github.com/timmy/sportsclips/internal/source/rss"
	"github.com/timmy/sportsclips/internal/source/scrape"
)

// FieldKind is the input type a config field expects.
type FieldKind string

const (
	FieldURL         FieldKind = "url"
	FieldString      FieldKind = "string"
	FieldInt         FieldKind = "int"
	FieldBool        FieldKind = "bool"
	FieldCSSSelector FieldKind = "css-selector"
	FieldEnum        FieldKind = "enum"
)

// FieldDescriptor describes one config key for form rendering.
type FieldDescriptor struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// Capabilities lists the optional interfaces an adapter implements.
type Capabilities struct {
	Odds    bool `json:"odds"`
	Results bool `json:"results"`
}

// Metadata is the UI-facing description of an adapter kind.
type Metadata struct {
	Type                          domain.SourceType `json:"type"`
	DisplayName                   string            `json:"display_name"`
	Description                   string            `json:"description"`
	Fields                        []FieldDescriptor `json:"fields"`
	RecommendedMinIntervalMinutes int               `json:"recommended_min_interval_minutes,omitempty"`
	Capabilities                  Capabilities      `json:"capabilities"`
}

// Entry pairs an adapter instance with its metadata.
type Entry struct {
	Adapter  source.Adapter
	Metadata Metadata
}

// Options configures adapter endpoints. Empty values select public defaults.
type Options struct {
	ESPNBaseURL       string
	DraftKingsBaseURL string
	SportsGridBaseURL string
	RenderURL         string
	RenderToken       string
	Clock             source.Clock
}

// Registry is the static table from source type to adapter.
type Registry struct {
	entries map[domain.SourceType]Entry
}

var selectorFields = []FieldDescriptor{
	{Key: "selectors.headline", Label: "Headline selector", Kind: FieldCSSSelector, Required: true},
	{Key: "selectors.content", Label: "Content selector", Kind: FieldCSSSelector},
	{Key: "selectors.date", Label: "Date selector", Kind: FieldCSSSelector},
	{Key: "selectors.author", Label: "Author selector", Kind: FieldCSSSelector},
	{Key: "selectors.link", Label: "Link selector", Kind: FieldCSSSelector},
	{Key: "selectors.image", Label: "Image selector", Kind: FieldCSSSelector},
}

var maxItemsField = FieldDescriptor{Key: "maxItems", Label: "Max items", Kind: FieldInt}

var oddsFields = []FieldDescriptor{
	{Key: "sport", Label: "Sport", Kind: FieldString, Required: true},
	{Key: "league", Label: "League", Kind: FieldString},
}

// New builds the registry once at startup.
// Parameters:
//   - opts: adapter endpoints and clock.
// Returns:
//   - *Registry: table covering every domain.SourceType.
func New(opts Options) *Registry {
	adapters := []source.Adapter{
		rss.NewAdapter(opts.Clock),
		scrape.NewAdapter(opts.Clock),
		espn.NewAdapter(opts.ESPNBaseURL, opts.Clock),
		odds.NewDraftKings(opts.DraftKingsBaseURL, opts.Clock),
		odds.NewSportsGrid(opts.SportsGridBaseURL, opts.Clock),
		browser.NewAdapter(opts.RenderURL, opts.RenderToken, opts.Clock),
	}
	meta := map[domain.SourceType]Metadata{
		domain.SourceTypeRSSFeed: {
			DisplayName: "RSS / Atom feed",
			Description: "Polls a syndication feed.",
			Fields: []FieldDescriptor{
				{Key: "feedUrl", Label: "Feed URL", Kind: FieldURL, Required: true},
				maxItemsField,
			},
		},
		domain.SourceTypeWebsiteScrape: {
			DisplayName: "Website scrape",
			Description: "Extracts headlines from an HTML listing page with CSS selectors.",
			Fields: append(append([]FieldDescriptor{
				{Key: "url", Label: "Page URL", Kind: FieldURL, Required: true},
			}, selectorFields...), maxItemsField,
				FieldDescriptor{Key: "followLinks", Label: "Fetch linked articles", Kind: FieldBool}),
		},
		domain.SourceTypeESPNAPI: {
			DisplayName: "ESPN",
			Description: "ESPN site API news and scoreboards.",
			Fields: []FieldDescriptor{
				{Key: "section", Label: "Section", Kind: FieldEnum, Required: true, Options: []string{espn.SectionNews, espn.SectionScores}},
				{Key: "sport", Label: "Sport", Kind: FieldString},
				{Key: "league", Label: "League", Kind: FieldString},
			},
		},
		domain.SourceTypeDraftKingsAPI: {
			DisplayName: "DraftKings",
			Description: "DraftKings sportsbook lines.",
			Fields:      oddsFields,
		},
		domain.SourceTypeSportsGridAPI: {
			DisplayName: "SportsGrid",
			Description: "SportsGrid odds feed.",
			Fields:      oddsFields,
		},
		domain.SourceTypeHeadlessBrowser: {
			DisplayName: "Headless browser",
			Description: "Renders JavaScript-heavy pages before extracting with CSS selectors.",
			Fields: append(append([]FieldDescriptor{
				{Key: "url", Label: "Page URL", Kind: FieldURL, Required: true},
				{Key: "waitFor", Label: "Wait for selector", Kind: FieldCSSSelector},
			}, selectorFields...), maxItemsField),
		},
	}

	r := &Registry{entries: make(map[domain.SourceType]Entry, len(adapters))}
	for _, a := range adapters {
		m := meta[a.Type()]
		m.Type = a.Type()
		if adv, ok := a.(source.IntervalAdvisor); ok {
			m.RecommendedMinIntervalMinutes = int(adv.RecommendedMinInterval() / time.Minute)
		}
		_, m.Capabilities.Odds = a.(source.OddsFetcher)
		_, m.Capabilities.Results = a.(source.ResultsFetcher)
		r.entries[a.Type()] = Entry{Adapter: a, Metadata: m}
	}
	return r
}

// Lookup returns the adapter for a source type.
func (r *Registry) Lookup(t domain.SourceType) (source.Adapter, error) {
	e, ok := r.entries[t]
	if !ok {
		return nil, fmt.Errorf("unknown source type %q", t)
	}
	return e.Adapter, nil
}

// Metadata returns metadata for every registered type in display order.
func (r *Registry) Metadata() []Metadata {
	out := make([]Metadata, 0, len(r.entries))
	for _, t := range domain.SourceTypes {
		if e, ok := r.entries[t]; ok {
			out = append(out, e.Metadata)
		}
	}
	return out
}

// Validate checks a config for the given type. Unknown types are an error.
func (r *Registry) Validate(t domain.SourceType, config domain.JSONMap) (source.ValidationResult, error) {
	a, err := r.Lookup(t)
	if err != nil {
		return source.ValidationResult{}, err
	}
	return a.ValidateConfig(config), nil
}

// ValidateSource validates the config and warns when the refresh interval is below the
// adapter's recommended minimum.
func (r *Registry) ValidateSource(src *domain.Source) (source.ValidationResult, error) {
	res, err := r.Validate(src.Type, src.Config)
	if err != nil {
		return res, err
	}
	minimum := r.entries[src.Type].Metadata.RecommendedMinIntervalMinutes
	if src.IsScheduled && src.ScheduleType == domain.ScheduleHourly && minimum > 0 &&
		src.RefreshIntervalMinutes > 0 && src.RefreshIntervalMinutes < minimum {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"refresh interval of %d minutes is below the recommended minimum of %d minutes for %s",
			src.RefreshIntervalMinutes, minimum, src.Type))
	}
	return res, nil
}

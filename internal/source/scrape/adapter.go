package scrape

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

const (
	defaultMaxItems = 25
	maxFollowed     = 10
)

// DefaultLimits is the local request budget for scraped sites.
var DefaultLimits = source.RateLimitConfig{Requests: 30, Window: time.Minute, MinDelay: 2 * time.Second}

// Adapter implements source.Adapter for HTML listing pages.
type Adapter struct {
	source.Base
}

// NewAdapter creates a new scrape adapter.
func NewAdapter(clock source.Clock) *Adapter {
	return &Adapter{Base: source.NewBase(domain.SourceTypeWebsiteScrape, DefaultLimits, clock)}
}

// ValidateConfig checks {url, selectors.*, maxItems?, followLinks?}.
func (a *Adapter) ValidateConfig(config domain.JSONMap) source.ValidationResult {
	errs := []string{source.ValidateURL("url", config.String("url"))}
	errs = append(errs, ValidateSelectors(config)...)
	errs = append(errs, source.ValidateMaxItems(config))
	return source.NewValidation(errs, nil)
}

// RecommendedMinInterval is the shortest refresh interval that stays polite to scraped sites.
func (a *Adapter) RecommendedMinInterval() time.Duration {
	return 30 * time.Minute
}

// Fetch downloads the listing page and extracts items with the configured selectors.
func (a *Adapter) Fetch(ctx context.Context, src *domain.Source, opts source.FetchOptions) (*source.FetchResult, error) {
	pageURL := src.Config.String("url")
	body, err := a.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, source.NewFetchError(a.Kind, 0, fmt.Errorf("parse html: %w", err))
	}

	items := ExtractItems(doc, pageURL, SelectorsFromConfig(src.Config))
	out, hasMore := source.Finalize(items, source.FetchOptions{
		Since: opts.Since,
		Limit: source.EffectiveLimit(opts, src.Config, defaultMaxItems),
	})

	if src.Config.Bool("followLinks") {
		a.fillContent(ctx, out)
	}

	return &source.FetchResult{
		Items:              out,
		HasMore:            hasMore,
		RateLimitRemaining: a.RateLimitStatus().Remaining,
	}, nil
}

// fillContent fetches linked articles for items without content. Failures leave the item as is.
func (a *Adapter) fillContent(ctx context.Context, items []source.RawNewsItem) {
	followed := 0
	for i := range items {
		if items[i].Content != "" || items[i].URL == "" || followed >= maxFollowed {
			continue
		}
		followed++
		body, err := a.Get(ctx, items[i].URL, nil)
		if err != nil {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			continue
		}
		items[i].Content = ArticleBody(doc)
		items[i].Type = source.Classify(items[i].Headline, items[i].Content)
	}
}

package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
	"github.com/timmy/sportsclips/internal/source/scrape"
)

const defaultMaxItems = 25

// DefaultLimits is the local budget for the rendering service, which is far more expensive than a GET.
var DefaultLimits = source.RateLimitConfig{Requests: 10, Window: time.Minute, MinDelay: 5 * time.Second}

// Adapter implements source.Adapter for pages that need a real browser.
// Rendering is delegated to a remote service exposing POST /content.
type Adapter struct {
	source.Base
	renderURL string
	token     string
}

// NewAdapter creates a new headless-browser adapter.
func NewAdapter(renderURL, token string, clock source.Clock) *Adapter {
	return &Adapter{
		Base:      source.NewBase(domain.SourceTypeHeadlessBrowser, DefaultLimits, clock),
		renderURL: strings.TrimRight(renderURL, "/"),
		token:     token,
	}
}

// ValidateConfig checks {url, selectors.headline, waitFor?, maxItems?}.
func (a *Adapter) ValidateConfig(config domain.JSONMap) source.ValidationResult {
	errs := []string{source.ValidateURL("url", config.String("url"))}
	errs = append(errs, scrape.ValidateSelectors(config)...)
	errs = append(errs, source.ValidateMaxItems(config))
	var warnings []string
	if a.renderURL == "" {
		warnings = append(warnings, "no rendering service configured; fetches will fail")
	}
	return source.NewValidation(errs, warnings)
}

// RecommendedMinInterval implements source.IntervalAdvisor.
func (a *Adapter) RecommendedMinInterval() time.Duration {
	return time.Hour
}

type renderRequest struct {
	URL             string `json:"url"`
	WaitForSelector string `json:"waitForSelector,omitempty"`
}

// Fetch renders the page remotely and extracts items with the configured selectors.
func (a *Adapter) Fetch(ctx context.Context, src *domain.Source, opts source.FetchOptions) (*source.FetchResult, error) {
	if a.renderURL == "" {
		return nil, source.NewFetchError(a.Kind, 0, fmt.Errorf("rendering service not configured"))
	}
	if err := a.Limiter.Wait(ctx); err != nil {
		return nil, source.NewFetchError(a.Kind, 0, err)
	}

	pageURL := src.Config.String("url")
	req := a.Client.R().
		SetContext(ctx).
		SetBody(renderRequest{URL: pageURL, WaitForSelector: src.Config.String("waitFor")})
	if a.token != "" {
		req.SetQueryParam("token", a.token)
	}
	resp, err := req.Post(a.renderURL + "/content")
	if err != nil {
		return nil, source.NewFetchError(a.Kind, 0, fmt.Errorf("render %s: %w", pageURL, err))
	}
	if resp.IsError() {
		return nil, source.NewFetchError(a.Kind, resp.StatusCode(), fmt.Errorf("render %s: %s", pageURL, resp.Status()))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, source.NewFetchError(a.Kind, 0, fmt.Errorf("parse rendered html: %w", err))
	}
	items := scrape.ExtractItems(doc, pageURL, scrape.SelectorsFromConfig(src.Config))
	out, hasMore := source.Finalize(items, source.FetchOptions{
		Since: opts.Since,
		Limit: source.EffectiveLimit(opts, src.Config, defaultMaxItems),
	})
	return &source.FetchResult{
		Items:              out,
		HasMore:            hasMore,
		RateLimitRemaining: a.RateLimitStatus().Remaining,
	}, nil
}

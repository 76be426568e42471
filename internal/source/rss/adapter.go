package rss

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

const defaultMaxItems = 50

// DefaultLimits is the local request budget for feed sources.
var DefaultLimits = source.RateLimitConfig{Requests: 60, Window: time.Minute, MinDelay: time.Second}

// Adapter implements source.Adapter for RSS and Atom feeds.
type Adapter struct {
	source.Base
}

// NewAdapter creates a new feed adapter.
func NewAdapter(clock source.Clock) *Adapter {
	return &Adapter{Base: source.NewBase(domain.SourceTypeRSSFeed, DefaultLimits, clock)}
}

// ValidateConfig checks {feedUrl, maxItems?}.
func (a *Adapter) ValidateConfig(config domain.JSONMap) source.ValidationResult {
	return source.NewValidation([]string{
		source.ValidateURL("feedUrl", config.String("feedUrl")),
		source.ValidateMaxItems(config),
	}, nil)
}

// Fetch downloads and parses the feed.
func (a *Adapter) Fetch(ctx context.Context, src *domain.Source, opts source.FetchOptions) (*source.FetchResult, error) {
	feedURL := src.Config.String("feedUrl")
	body, err := a.Get(ctx, feedURL, nil)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, source.NewFetchError(a.Kind, 0, fmt.Errorf("parse feed: %w", err))
	}

	items := make([]source.RawNewsItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		headline := strings.TrimSpace(entry.Title)
		if headline == "" {
			continue
		}
		content := entry.Description
		if entry.Content != "" {
			content = entry.Content
		}
		content = stripTags(content)
		items = append(items, source.RawNewsItem{
			ExternalID:  source.ExternalIDFor(headline, entry.GUID, entry.Link),
			Type:        source.Classify(headline, content),
			Headline:    headline,
			Content:     content,
			URL:         entry.Link,
			PublishedAt: publishedAt(entry),
			Author:      author(entry),
			ImageURL:    image(entry),
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
	}, nil
}

func publishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Now().UTC()
}

func author(entry *gofeed.Item) string {
	if entry.Author != nil && entry.Author.Name != "" {
		return entry.Author.Name
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		return entry.Authors[0].Name
	}
	return ""
}

func image(entry *gofeed.Item) string {
	if entry.Image != nil {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// stripTags drops markup from feed descriptions.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

package scrape

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

// Selectors are the CSS selectors configured for a listing page.
type Selectors struct {
	Headline string
	Content  string
	Date     string
	Author   string
	Link     string
	Image    string
}

// SelectorsFromConfig reads selectors.* keys from a source config.
func SelectorsFromConfig(config domain.JSONMap) Selectors {
	return Selectors{
		Headline: config.String("selectors.headline"),
		Content:  config.String("selectors.content"),
		Date:     config.String("selectors.date"),
		Author:   config.String("selectors.author"),
		Link:     config.String("selectors.link"),
		Image:    config.String("selectors.image"),
	}
}

// ValidateSelectors checks that the headline selector exists and every selector parses.
func ValidateSelectors(config domain.JSONMap) []string {
	var errs []string
	sel := SelectorsFromConfig(config)
	if strings.TrimSpace(sel.Headline) == "" {
		errs = append(errs, "selectors.headline is required")
	}
	for key, value := range map[string]string{
		"selectors.headline": sel.Headline,
		"selectors.content":  sel.Content,
		"selectors.date":     sel.Date,
		"selectors.author":   sel.Author,
		"selectors.link":     sel.Link,
		"selectors.image":    sel.Image,
	} {
		if value != "" && !validSelector(value) {
			errs = append(errs, key+" is not a valid CSS selector")
		}
	}
	return errs
}

func validSelector(sel string) bool {
	_, err := cascadia.Compile(sel)
	return err == nil
}

// ExtractItems pulls one item per headline match. The n-th match of every other
// selector belongs to the n-th headline.
// Parameters:
//   - doc: parsed listing page.
//   - pageURL: base for resolving relative links.
//   - sel: configured selectors.
// Returns:
//   - []source.RawNewsItem: classified items with external ids assigned.
func ExtractItems(doc *goquery.Document, pageURL string, sel Selectors) []source.RawNewsItem {
	base, _ := url.Parse(pageURL)
	headlines := doc.Find(sel.Headline)
	contents := optionalFind(doc, sel.Content)
	dates := optionalFind(doc, sel.Date)
	authors := optionalFind(doc, sel.Author)
	links := optionalFind(doc, sel.Link)
	images := optionalFind(doc, sel.Image)

	items := make([]source.RawNewsItem, 0, headlines.Length())
	headlines.Each(func(i int, h *goquery.Selection) {
		headline := cleanText(h.Text())
		if headline == "" {
			return
		}
		content := textAt(contents, i)
		link := linkFor(h, links, i)
		if link != "" && base != nil {
			if ref, err := url.Parse(link); err == nil {
				link = base.ResolveReference(ref).String()
			}
		}
		image := ""
		if images != nil && i < images.Length() {
			img := images.Eq(i)
			if src, ok := img.Attr("src"); ok {
				image = src
			} else if src, ok := img.Find("img").First().Attr("src"); ok {
				image = src
			}
		}
		items = append(items, source.RawNewsItem{
			ExternalID:  source.ExternalIDFor(headline, link),
			Type:        source.Classify(headline, content),
			Headline:    headline,
			Content:     content,
			URL:         link,
			PublishedAt: parseDate(dates, i),
			Author:      textAt(authors, i),
			ImageURL:    image,
		})
	})
	return items
}

// ArticleBody extracts the main text of an article page.
// Prefers <article> content, falling back to <body> with non-content elements stripped.
func ArticleBody(doc *goquery.Document) string {
	const nonContent = "script, style, nav, header, footer, aside"
	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return ""
	}
	root.Find(nonContent).Remove()
	return cleanText(root.Text())
}

func optionalFind(doc *goquery.Document, sel string) *goquery.Selection {
	if sel == "" {
		return nil
	}
	return doc.Find(sel)
}

func textAt(s *goquery.Selection, i int) string {
	if s == nil || i >= s.Length() {
		return ""
	}
	return cleanText(s.Eq(i).Text())
}

func linkFor(h *goquery.Selection, links *goquery.Selection, i int) string {
	if links != nil && i < links.Length() {
		if href, ok := links.Eq(i).Attr("href"); ok {
			return href
		}
		if href, ok := links.Eq(i).Find("a").First().Attr("href"); ok {
			return href
		}
	}
	if href, ok := h.Attr("href"); ok {
		return href
	}
	if href, ok := h.Find("a").First().Attr("href"); ok {
		return href
	}
	if href, ok := h.Closest("a").Attr("href"); ok {
		return href
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDate(dates *goquery.Selection, i int) time.Time {
	if dates == nil || i >= dates.Length() {
		return time.Now().UTC()
	}
	node := dates.Eq(i)
	raw, ok := node.Attr("datetime")
	if !ok {
		raw = node.Text()
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

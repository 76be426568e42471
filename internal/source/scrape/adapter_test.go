package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

const listingPage = `<html><body>
<div class="story"><h2 class="title"><a href="/story/1">Celtics beat Heat in overtime</a></h2>
  <span class="date">2024-01-08</span><span class="by">Jane Doe</span></div>
<div class="story"><h2 class="title"><a href="/story/2">Rumor: Nets interest in guard</a></h2>
  <span class="date">2024-01-07</span><span class="by">John Roe</span></div>
<div class="story"><h2 class="title"><a href="/story/1">Celtics beat Heat in overtime</a></h2>
  <span class="date">2024-01-08</span><span class="by">Jane Doe</span></div>
</body></html>`

const articlePage = `<html><body><nav>menu</nav><article><p>Tatum scored 40.</p><script>x()</script></article></body></html>`

func newServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/story/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articlePage))
	})
	return httptest.NewServer(mux)
}

func TestAdapterFetch(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	src := &domain.Source{Config: domain.JSONMap{
		"url": srv.URL + "/news",
		"selectors": map[string]interface{}{
			"headline": ".story .title",
			"date":     ".story .date",
			"author":   ".story .by",
		},
	}}

	res, err := NewAdapter(nil).Fetch(context.Background(), src, source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.Equal(t, srv.URL+"/story/1", res.Items[0].ExternalID)
	assert.Equal(t, domain.NewsTypeGameResult, res.Items[0].Type)
	assert.Equal(t, "Jane Doe", res.Items[0].Author)
	assert.Equal(t, 2024, res.Items[0].PublishedAt.Year())
	assert.Equal(t, domain.NewsTypeRumor, res.Items[1].Type)
	assert.Empty(t, res.Items[0].Content)
}

func TestAdapterFetchFollowLinks(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	src := &domain.Source{Config: domain.JSONMap{
		"url":         srv.URL + "/news",
		"followLinks": true,
		"maxItems":    float64(1),
		"selectors":   map[string]interface{}{"headline": ".story .title"},
	}}

	res, err := NewAdapter(nil).Fetch(context.Background(), src, source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.True(t, res.HasMore)
	assert.Equal(t, "Tatum scored 40.", res.Items[0].Content)
}

func TestAdapterFetchNoMatches(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	src := &domain.Source{Config: domain.JSONMap{
		"url":       srv.URL + "/news",
		"selectors": map[string]interface{}{"headline": ".nothing-here"},
	}}
	res, err := NewAdapter(nil).Fetch(context.Background(), src, source.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestValidateConfig(t *testing.T) {
	a := NewAdapter(nil)

	res := a.ValidateConfig(domain.JSONMap{"url": "https://example.com"})
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "selectors.headline is required")

	res = a.ValidateConfig(domain.JSONMap{
		"url":       "https://example.com",
		"selectors": map[string]interface{}{"headline": "h2[["},
	})
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "selectors.headline is not a valid CSS selector")

	res = a.ValidateConfig(domain.JSONMap{
		"url":       "https://example.com",
		"selectors": map[string]interface{}{"headline": "h2 a"},
	})
	assert.True(t, res.Valid)
}

package espn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

const newsJSON = `{"articles":[
 {"id":101,"headline":"Bills acquire pass rusher","description":"Trade details","published":"2024-01-08T12:00:00Z","byline":"A. Writer","links":{"web":{"href":"https://espn.com/1"}}},
 {"id":102,"headline":"Bills top Dolphins","description":"","published":"2024-01-08T03:00Z","type":"Recap","links":{"web":{"href":"https://espn.com/2"}}}
]}`

const scoreboardJSON = `{"leagues":[{"abbreviation":"NFL"}],"events":[
 {"id":"401","name":"Dolphins at Bills","date":"2024-01-08T01:20Z",
  "competitions":[{"competitors":[
    {"homeAway":"home","score":"21","team":{"displayName":"Buffalo Bills"}},
    {"homeAway":"away","score":"14","team":{"displayName":"Miami Dolphins"}}]}],
  "status":{"type":{"name":"STATUS_FINAL","completed":true}}},
 {"id":"402","name":"Jets at Patriots","date":"2024-01-08T18:00Z",
  "competitions":[{"competitors":[
    {"homeAway":"home","score":"7","team":{"displayName":"New England Patriots"}},
    {"homeAway":"away","score":"3","team":{"displayName":"New York Jets"}}]}],
  "status":{"type":{"name":"STATUS_IN_PROGRESS","completed":false}}},
 {"id":"403","name":"Bears at Packers","date":"2024-01-09T01:00Z",
  "competitions":[{"competitors":[
    {"homeAway":"home","score":"0","team":{"displayName":"Green Bay Packers"}},
    {"homeAway":"away","score":"0","team":{"displayName":"Chicago Bears"}}]}],
  "status":{"type":{"name":"STATUS_SCHEDULED","completed":false}}}
]}`

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) add(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits[path]++
}

func (h *hitCounter) get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func newServer(t *testing.T) (*httptest.Server, *hitCounter) {
	hits := &hitCounter{hits: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/football/nfl/news", func(w http.ResponseWriter, r *http.Request) {
		hits.add("news")
		_, _ = w.Write([]byte(newsJSON))
	})
	mux.HandleFunc("/football/nfl/scoreboard", func(w http.ResponseWriter, r *http.Request) {
		hits.add("scoreboard")
		_, _ = w.Write([]byte(scoreboardJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestFetchNews(t *testing.T) {
	srv, hits := newServer(t)
	a := NewAdapter(srv.URL, nil)
	src := &domain.Source{Config: domain.JSONMap{"section": "news"}}

	res, err := a.Fetch(context.Background(), src, source.FetchOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Results)

	results, err := a.FetchResults(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, hits.get("news"))
	assert.Zero(t, hits.get("scoreboard"), "a news source never reads the scoreboard")

	require.Len(t, res.Items, 2)
	assert.Equal(t, "101", res.Items[0].ExternalID)
	assert.Equal(t, domain.NewsTypeTrade, res.Items[0].Type)
	assert.Equal(t, "A. Writer", res.Items[0].Author)
	assert.Equal(t, domain.NewsTypeGameResult, res.Items[1].Type)
	assert.Equal(t, 3, res.Items[1].PublishedAt.Hour())
}

func TestFetchScores(t *testing.T) {
	srv, hits := newServer(t)
	a := NewAdapter(srv.URL, nil)
	src := &domain.Source{ID: "src-1", OrgID: "org", Sport: "football", Config: domain.JSONMap{"section": "scores"}}

	res, err := a.Fetch(context.Background(), src, source.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, hits.get("scoreboard"))

	require.Len(t, res.Items, 1, "only final games become news items")
	assert.Equal(t, "game_401", res.Items[0].ExternalID)
	assert.Equal(t, "Miami Dolphins 14, Buffalo Bills 21 (Final)", res.Items[0].Headline)
	assert.Equal(t, domain.NewsTypeGameResult, res.Items[0].Type)

	require.Len(t, res.Results, 2, "scheduled games are dropped")
	r := res.Results[0]
	assert.Equal(t, "Buffalo Bills", r.HomeTeam)
	assert.Equal(t, 21, r.HomeScore)
	assert.Equal(t, 14, r.AwayScore)
	assert.Equal(t, "final", r.Status)
	assert.Equal(t, "NFL", r.League)
	assert.Equal(t, "in_progress", res.Results[1].Status)

	results, err := a.FetchResults(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestValidateConfig(t *testing.T) {
	a := NewAdapter("", nil)
	assert.False(t, a.ValidateConfig(domain.JSONMap{}).Valid)
	assert.False(t, a.ValidateConfig(domain.JSONMap{"section": "videos"}).Valid)

	res := a.ValidateConfig(domain.JSONMap{"section": "scores"})
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)
}

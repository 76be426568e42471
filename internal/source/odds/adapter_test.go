package odds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source"
)

const dkJSON = `{"events":[{"eventId":"e1","name":"Bears @ Packers","startEventDate":"2024-01-07T18:00:00Z",
 "homeTeam":"Packers","awayTeam":"Bears",
 "offers":[{"label":"Spread","outcomes":[{"label":"Packers","line":-3.5,"oddsAmerican":"-110"},{"label":"Bears","line":3.5,"oddsAmerican":"-110"}]},
           {"label":"Moneyline","outcomes":[{"label":"Packers","oddsAmerican":"-170"},{"label":"Bears","oddsAmerican":"+150"}]}]}]}`

const sgJSON = `{"data":[{"id":"g9","home":"Lakers","away":"Suns","start_time":"2024-01-07T03:00:00Z",
 "markets":{"spread":{"home":-2,"away":2},"total":221.5}}]}`

func TestDraftKingsFetch(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/sports/football/leagues/nfl/events", r.URL.Path)
		_, _ = w.Write([]byte(dkJSON))
	}))
	defer srv.Close()

	a := NewDraftKings(srv.URL, nil)
	src := &domain.Source{ID: "s1", OrgID: "org", Sport: "football", Config: domain.JSONMap{"sport": "football", "league": "nfl"}}

	res, err := a.Fetch(context.Background(), src, source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	item := res.Items[0]
	assert.Equal(t, domain.NewsTypeBettingLine, item.Type)
	assert.Equal(t, "Bears @ Packers: moneyline Bears +150 / Packers -170; spread Bears +3.5 / Packers -3.5", item.Headline)

	assert.Equal(t, int32(1), requests.Load())

	snaps := res.Odds
	require.Len(t, snaps, 2, "odds come from the same response as the items")
	assert.Equal(t, "moneyline", snaps[0].Market)
	assert.Equal(t, float64(150), snaps[0].Lines["Bears"])
	assert.Equal(t, "Packers", snaps[1].HomeTeam)
}

func TestSportsGridDecode(t *testing.T) {
	events, err := sportsGrid{}.Decode([]byte(sgJSON))
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, float64(-2), ev.Markets["spread"]["Lakers"])
	assert.Equal(t, 221.5, ev.Markets["total"]["over/under"])
	assert.NotContains(t, ev.Markets, "moneyline")
}

func TestLineMoveChangesExternalID(t *testing.T) {
	before := summarize(map[string]map[string]float64{"spread": {"Packers": -3.5}})
	after := summarize(map[string]map[string]float64{"spread": {"Packers": -4}})
	assert.NotEqual(t, before, after)
}

func TestValidateConfig(t *testing.T) {
	a := NewSportsGrid("", nil)
	res := a.ValidateConfig(domain.JSONMap{"league": "nba"})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"sport is required"}, res.Errors)
	assert.True(t, a.ValidateConfig(domain.JSONMap{"sport": "basketball"}).Valid)
}

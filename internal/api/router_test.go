package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/metrics"
	"github.com/timmy/sportsclips/internal/queue"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/schedule"
	"github.com/timmy/sportsclips/internal/service"
	"github.com/timmy/sportsclips/internal/source/registry"
)

type testServer struct {
	handler    http.Handler
	sources    *repository.SourceRepository
	news       *repository.NewsRepository
	candidates *repository.CandidateRepository
	queue      *queue.MemoryQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "file:" + uuid.New().String() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := &testServer{
		sources:    repository.NewSourceRepository(db),
		news:       repository.NewNewsRepository(db),
		candidates: repository.NewCandidateRepository(db),
		queue:      queue.NewMemoryQueue(),
	}
	queries := repository.NewQueryDefinitionRepository(db)
	runs := repository.NewRunRepository(db)
	matches := repository.NewClipMatchRepository(db)
	scheduler := schedule.New(s.sources, queries, runs, s.queue, m, schedule.Config{ManualCooldown: time.Minute})

	s.handler = SetupRouter(Dependencies{
		DB:         db,
		Registry:   registry.New(registry.Options{}),
		Sources:    s.sources,
		Queries:    queries,
		Runs:       runs,
		News:       s.news,
		Candidates: s.candidates,
		Matches:    matches,
		Scheduler:  scheduler,
		Pairing:    service.NewPairingService(s.news, s.candidates, matches, nil, m, service.PairingConfig{}),
		Search:     service.NewSearchService(nil, nil, s.candidates),
		Gatherer:   reg,
	}, &config.ServerConfig{Mode: "test", OrgID: "org"})
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdapters(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/adapters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, len(domain.SourceTypes), list.Total)

	w = s.do(t, http.MethodPost, "/api/v1/adapters/RSS_FEED/validate", map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	decode(t, w, &res)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	w = s.do(t, http.MethodPost, "/api/v1/adapters/NOPE/validate", map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSources_CreateAndTrigger(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/sources", map[string]interface{}{
		"name": "Broken", "type": "RSS_FEED", "config": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sources", map[string]interface{}{
		"name": "Bad schedule", "type": "RSS_FEED",
		"config":       map[string]interface{}{"feedUrl": "https://example.com/rss"},
		"is_scheduled": true, "schedule_type": "CUSTOM", "cron_expression": "not a cron",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sources", map[string]interface{}{
		"name": "Feed", "type": "RSS_FEED", "sport": "basketball",
		"config":       map[string]interface{}{"feedUrl": "https://example.com/rss"},
		"is_scheduled": true, "schedule_type": "HOURLY", "refresh_interval_minutes": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Source domain.Source `json:"source"`
	}
	decode(t, w, &created)
	id := created.Source.ID
	require.NotEmpty(t, id)
	assert.NotNil(t, created.Source.NextFetchAt)

	w = s.do(t, http.MethodPost, "/api/v1/sources/"+id+"/fetch", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	n, err := s.queue.Len(context.Background(), queue.KindSourceFetch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	w = s.do(t, http.MethodPost, "/api/v1/sources/"+id+"/fetch", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "cooldown applies first")

	w = s.do(t, http.MethodGet, "/api/v1/sources/"+id+"/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs struct {
		Runs []domain.SourceFetchRun `json:"runs"`
	}
	decode(t, w, &runs)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, domain.TriggerManual, runs.Runs[0].Trigger)

	w = s.do(t, http.MethodPost, "/api/v1/sources/missing/fetch", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSources_InFlightConflict(t *testing.T) {
	s := newTestServer(t)
	src := &domain.Source{
		OrgID: "org", Name: "feed", Type: domain.SourceTypeRSSFeed,
		Config: domain.JSONMap{"feedUrl": "https://example.com/rss"}, Schedule: domain.Schedule{IsActive: true},
	}
	require.NoError(t, s.sources.Create(context.Background(), src))

	w := s.do(t, http.MethodPost, "/api/v1/scheduler/tick", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sources/"+src.ID+"/fetch", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NoError(t, s.sources.SetManualTrigger(context.Background(), src.ID, time.Now().Add(-time.Hour)))

	w = s.do(t, http.MethodPost, "/api/v1/sources/"+src.ID+"/fetch", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/sources/"+src.ID+"/status", map[string]string{"status": "PAUSED"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPatch, "/api/v1/sources/"+src.ID+"/status", map[string]string{"status": "ERROR"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueries_CreateRunAndPoll(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/queries", map[string]interface{}{"name": "no keywords", "sport": "basketball"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/queries", map[string]interface{}{
		"name": "Dunks", "sport": "basketball", "keywords": []string{"dunk"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var def domain.QueryDefinition
	decode(t, w, &def)
	assert.Nil(t, def.NextRunAt, "manual definitions are never due")

	w = s.do(t, http.MethodPost, "/api/v1/queries/"+def.ID+"/run", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var run domain.QueryRun
	decode(t, w, &run)
	assert.Equal(t, domain.RunStatusQueued, run.Status)

	w = s.do(t, http.MethodGet, "/api/v1/query-runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var polled domain.QueryRun
	decode(t, w, &polled)
	assert.Equal(t, 0, polled.Progress)

	w = s.do(t, http.MethodGet, "/api/v1/query-runs/"+run.ID+"/candidates", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/query-runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCandidates_StatusTransitions(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	v := &domain.Video{YouTubeID: "yt1", Title: "Top dunks", PublishedAt: time.Now().UTC()}
	require.NoError(t, s.candidates.UpsertVideo(ctx, v))
	cs := []domain.Candidate{{OrgID: "org", VideoID: v.ID, QueryRunID: "run", Sport: "basketball"}}
	require.NoError(t, s.candidates.CreateCandidates(ctx, cs))
	id := cs[0].ID

	w := s.do(t, http.MethodPatch, "/api/v1/candidates/"+id+"/status", map[string]string{"status": "SHORTLISTED"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/candidates/"+id+"/status", map[string]string{"status": "NEW"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/candidates/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cand domain.Candidate
	decode(t, w, &cand)
	assert.Equal(t, domain.CandidateStatusShortlisted, cand.Status)

	w = s.do(t, http.MethodGet, "/api/v1/candidates/search?q=dunks", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/candidates/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNews_EnrichAndPair(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	v := &domain.Video{YouTubeID: "yt1", Title: "Boston Celtics vs Miami Heat full highlights", PublishedAt: now.Add(-time.Hour)}
	require.NoError(t, s.candidates.UpsertVideo(ctx, v))
	require.NoError(t, s.candidates.CreateCandidates(ctx, []domain.Candidate{
		{OrgID: "org", VideoID: v.ID, QueryRunID: "run", Sport: "basketball", RelevanceScore: 0.5},
	}))
	items := []domain.NewsItem{{
		OrgID: "org", SourceID: "src", ExternalID: "n1", Sport: "basketball",
		Headline: "Celtics edge Heat in overtime", PublishedAt: now,
	}}
	_, err := s.news.InsertNew(ctx, items)
	require.NoError(t, err)
	id := items[0].ID

	w := s.do(t, http.MethodPatch, "/api/v1/news/"+id, map[string]interface{}{"importance_score": 1.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/news/"+id, map[string]interface{}{
		"importance_score": 0.9,
		"teams":            []string{"Boston Celtics", "Miami Heat"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/news/pair-pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats service.PairingStats
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Paired)

	w = s.do(t, http.MethodGet, "/api/v1/news/"+id+"/matches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var matches struct {
		Total int `json:"total"`
	}
	decode(t, w, &matches)
	assert.Equal(t, 1, matches.Total)

	w = s.do(t, http.MethodPost, "/api/v1/news/missing/pair", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

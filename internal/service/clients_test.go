package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/storage"
)

func TestYouTubeClient_Search(t *testing.T) {
	var searchCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("key"))
		switch r.URL.Path {
		case "/search":
			searchCalls++
			assert.Equal(t, "video", q.Get("type"))
			assert.Equal(t, "basketball dunk", q.Get("q"))
			assert.Equal(t, "2024-03-07T12:00:00Z", q.Get("publishedAfter"))
			if q.Get("pageToken") == "" {
				_, _ = w.Write([]byte(`{"nextPageToken":"p2","items":[{"id":{"videoId":"v1"}}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"items":[{"id":{"videoId":"v2"}}]}`))
		case "/videos":
			assert.Equal(t, "v1,v2", q.Get("id"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":"v1","snippet":{"title":"Top dunks","channelId":"c1","publishedAt":"2024-03-09T10:00:00Z",
				 "thumbnails":{"default":{"url":"d.jpg"},"high":{"url":"h.jpg"}}},
				 "statistics":{"viewCount":"1200","likeCount":"50"},
				 "contentDetails":{"duration":"PT4M13S"}},
				{"id":"v2","snippet":{"title":"Recap","publishedAt":"2024-03-08T10:00:00Z"},
				 "statistics":{},"contentDetails":{"duration":"PT1H"}}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewYouTubeClient(&config.YouTubeConfig{APIKey: "secret", BaseURL: srv.URL})
	videos, err := client.Search(context.Background(), SearchRequest{
		Query:          "basketball dunk",
		PublishedAfter: testNow.AddDate(0, 0, -3),
		MaxResults:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, searchCalls)
	require.Len(t, videos, 2)

	assert.Equal(t, "v1", videos[0].YouTubeID)
	assert.Equal(t, 253, videos[0].DurationSeconds)
	assert.Equal(t, int64(1200), videos[0].ViewCount)
	assert.Equal(t, "h.jpg", videos[0].ThumbnailURL)
	assert.Equal(t, time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), videos[0].PublishedAt)
	assert.Equal(t, 3600, videos[1].DurationSeconds)
	assert.Zero(t, videos[1].ViewCount)
}

func TestYouTubeClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	}))
	defer srv.Close()

	client := NewYouTubeClient(&config.YouTubeConfig{BaseURL: srv.URL})
	_, err := client.Search(context.Background(), SearchRequest{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quotaExceeded")
}

func TestParseISODuration(t *testing.T) {
	tests := map[string]int{
		"PT4M13S":  253,
		"PT1H2M3S": 3723,
		"P1DT1S":   86401,
		"PT45S":    45,
		"":         0,
		"bogus":    0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseISODuration(in), in)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	assert.Equal(t, `basketball dunk "buzzer beater"`, BuildSearchQuery("basketball", []string{"dunk", " buzzer beater ", ""}))
	assert.Equal(t, "dunk", BuildSearchQuery("", []string{"dunk"}))
}

func TestOpenAIAnalyzer_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "[12] huge dunk")

		w.Header().Set("Content-Type", "application/json")
		content := "```json\n{\"relevance\": 1.4, \"summary\": \" Big dunk \", \"keyMoments\": [{\"start\": 10, \"end\": 20, \"label\": \"dunk\", \"confidence\": 0.8}]}\n```"
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": content}}},
		})
	}))
	defer srv.Close()

	analyzer, err := NewAnalyzer(&config.AnalysisConfig{
		Enabled: true, Provider: "openai", Model: "gpt-test", APIKey: "key", BaseURL: srv.URL + "/v1/",
	})
	require.NoError(t, err)

	out, err := analyzer.Analyze(context.Background(), AnalysisRequest{
		Sport:    "basketball",
		Keywords: []string{"dunk"},
		Title:    "Top dunks",
		Segments: []domain.TranscriptSegment{{Start: 12, Duration: 3, Text: "huge dunk"}},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Relevance)
	assert.Equal(t, 1.0, *out.Relevance)
	assert.Equal(t, "Big dunk", out.Summary)
	require.Len(t, out.KeyMoments, 1)
	assert.Equal(t, "dunk", out.KeyMoments[0].Label)
}

func TestOpenAIAnalyzer_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	analyzer := NewOpenAIAnalyzer(&config.AnalysisConfig{BaseURL: srv.URL})
	_, err := analyzer.Analyze(context.Background(), AnalysisRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestNewAnalyzer(t *testing.T) {
	a, err := NewAnalyzer(&config.AnalysisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = NewAnalyzer(&config.AnalysisConfig{Enabled: true, Provider: "anthropic", Model: "m", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicAnalyzer{}, a)

	_, err = NewAnalyzer(&config.AnalysisConfig{Enabled: true, Provider: "mystery"})
	assert.Error(t, err)
}

func TestParseAnalysis(t *testing.T) {
	out, err := ParseAnalysis(`Sure! {"relevance": -0.5, "summary": "meh"} hope that helps`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *out.Relevance)
	assert.Equal(t, "meh", out.Summary)

	out, err = ParseAnalysis(`{"summary": "no score"}`)
	require.NoError(t, err)
	assert.Nil(t, out.Relevance)

	_, err = ParseAnalysis("no json here")
	assert.Error(t, err)
	_, err = ParseAnalysis("{not json}")
	assert.Error(t, err)
}

func TestEmbeddingService(t *testing.T) {
	assert.Nil(t, NewEmbeddingService(&config.EmbeddingConfig{Enabled: false}))

	var tasks []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		tasks = append(tasks, req.Task)
		assert.Equal(t, 4, req.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		// answer out of order
		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{"index": i, "embedding": []float32{float32(i), 0, 0, 1}})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&config.EmbeddingConfig{Enabled: true, Model: "jina", BaseURL: srv.URL, Dimensions: 4})
	require.NotNil(t, svc)
	assert.Equal(t, "jina", svc.GetModel())
	assert.Equal(t, 4, svc.Dimensions())

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}

	q, err := svc.EmbedQuery(context.Background(), "dunks")
	require.NoError(t, err)
	assert.Len(t, q, 4)
	assert.Equal(t, []string{"retrieval.passage", "retrieval.query"}, tasks)
}

func TestTranscriptClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		switch r.URL.Path {
		case "/transcripts/v1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"segments":[{"start":1.5,"duration":2,"text":"tip off"}]}`))
		case "/transcripts/empty":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"segments":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewTranscriptClient(&config.TranscriptConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	ctx := context.Background()

	segs, err := client.Fetch(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "tip off", segs[0].Text)

	_, err = client.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoTranscript)
	_, err = client.Fetch(ctx, "empty")
	assert.ErrorIs(t, err, ErrNoTranscript)

	_, err = NewTranscriptClient(&config.TranscriptConfig{}).Fetch(ctx, "v1")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

type countingFetcher struct {
	calls int
	segs  []domain.TranscriptSegment
}

func (c *countingFetcher) Fetch(context.Context, string) ([]domain.TranscriptSegment, error) {
	c.calls++
	if c.segs == nil {
		return nil, ErrNoTranscript
	}
	return c.segs, nil
}

func TestArchivedTranscripts(t *testing.T) {
	ctx := context.Background()
	upstream := &countingFetcher{segs: []domain.TranscriptSegment{{Start: 0, Duration: 4, Text: "hello"}}}
	archived := NewArchivedTranscripts(storage.NewTranscriptArchive(storage.NewMemoryStorage()), upstream)

	for i := 0; i < 2; i++ {
		segs, err := archived.Fetch(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, "hello", segs[0].Text)
	}
	assert.Equal(t, 1, upstream.calls, "second read served from the archive")

	missing := NewArchivedTranscripts(nil, &countingFetcher{})
	_, err := missing.Fetch(ctx, "v2")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }

func (stubEmbedder) EmbedQuery(_ context.Context, q string) ([]float32, error) {
	return []float32{float32(len(q)), 1}, nil
}

type fakeIndex struct {
	hits  []repository.IndexHit
	topK  int
	sport string
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK int, sport string) ([]repository.IndexHit, error) {
	f.topK, f.sport = topK, sport
	return f.hits, nil
}

func TestSearchService(t *testing.T) {
	ctx := context.Background()
	_, err := NewSearchService(nil, nil, nil).Search(ctx, &CandidateSearchRequest{Query: "dunks"})
	assert.ErrorIs(t, err, ErrSearchDisabled)

	db := newTestDB(t)
	candidates := repository.NewCandidateRepository(db)
	v := &domain.Video{YouTubeID: "yt1", Title: "Top dunks", PublishedAt: testNow}
	require.NoError(t, candidates.UpsertVideo(ctx, v))
	cs := []domain.Candidate{{OrgID: "org", VideoID: v.ID, QueryRunID: "run", Sport: "basketball", RelevanceScore: 0.8, AISummary: "dunks"}}
	require.NoError(t, candidates.CreateCandidates(ctx, cs))

	index := &fakeIndex{hits: []repository.IndexHit{
		{CandidateID: cs[0].ID, Score: 0.91, Payload: &repository.CandidatePayload{Title: "stale"}},
		{CandidateID: "deleted", Score: 0.5},
	}}
	svc := NewSearchService(index, stubEmbedder{}, candidates)
	require.True(t, svc.Enabled())

	results, err := svc.Search(ctx, &CandidateSearchRequest{Query: " dunks ", Sport: "basketball", TopK: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, index.topK)
	assert.Equal(t, "basketball", index.sport)
	require.Len(t, results, 1)
	assert.Equal(t, "Top dunks", results[0].Title)
	assert.Equal(t, "yt1", results[0].YouTubeID)
	assert.Equal(t, "NEW", results[0].Status)
	assert.Equal(t, float32(0.91), results[0].Score)

	results, err = svc.Search(ctx, &CandidateSearchRequest{Query: "dunks", MinScore: 0.95})
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = svc.Search(ctx, &CandidateSearchRequest{Query: "   "})
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "required"))
}

func TestEmbeddingService_ChunksAndValidates(t *testing.T) {
	calls := 0
	dims := 3
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Input), embeddingBatchSize)

		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := range req.Input {
			data = append(data, map[string]interface{}{"index": i, "embedding": make([]float32, dims)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&config.EmbeddingConfig{Enabled: true, APIKey: "secret", BaseURL: srv.URL, Dimensions: 3})
	texts := make([]string, embeddingBatchSize*2+5)
	for i := range texts {
		texts[i] = "window"
	}
	vecs, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	assert.Equal(t, 3, calls)

	dims = 5
	_, err = svc.Embed(context.Background(), "window")
	assert.ErrorContains(t, err, "expected 3")
}

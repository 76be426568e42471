package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/sportsclips/internal/config"
)

const (
	defaultEmbeddingBaseURL = "https://api.jina.ai/v1"

	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"

	// transcript windows are cut well below this; it guards against a runaway segment
	maxEmbeddingInputRunes = 8000
	embeddingBatchSize     = 32
)

var errNoEmbedding = errors.New("embedding API returned no vectors")

// EmbeddingService turns transcript windows and search intents into vectors through a
// Jina-style embeddings endpoint. Passages and queries are embedded with different tasks
// so a short intent lands near the moments that answer it.
type EmbeddingService struct {
	client     *resty.Client
	model      string
	dimensions int
}

type embeddingRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// NewEmbeddingService returns nil when embeddings are disabled, which callers treat as
// "score without semantic similarity".
func NewEmbeddingService(cfg *config.EmbeddingConfig) *EmbeddingService {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultEmbeddingBaseURL
	}
	client := resty.New().
		SetBaseURL(base).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(externalCallTimeout)

	return &EmbeddingService{client: client, model: cfg.Model, dimensions: cfg.Dimensions}
}

// GetModel returns the configured model name.
func (s *EmbeddingService) GetModel() string { return s.model }

// Dimensions returns the configured vector size. Zero means the provider default.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// Embed embeds one transcript passage.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedQuery embeds a short search intent such as "buzzer beater three".
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embed(ctx, taskQuery, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds passages in provider-sized chunks. The result is index-aligned with texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := s.embed(ctx, taskPassage, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) embed(ctx context.Context, task string, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = clampRunes(t, maxEmbeddingInputRunes)
	}

	var body embeddingResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{
			Model:         s.model,
			Task:          task,
			Dimensions:    s.dimensions,
			Input:         input,
			EmbeddingType: "float",
		}).
		SetResult(&body).
		SetError(&body).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if body.Detail != "" {
			return nil, fmt.Errorf("embedding API returned %d: %s", resp.StatusCode(), body.Detail)
		}
		return nil, fmt.Errorf("embedding API returned %d", resp.StatusCode())
	}

	// the API may answer out of order
	vecs := make([][]float32, len(texts))
	for _, d := range body.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if s.dimensions > 0 && len(d.Embedding) != s.dimensions {
			return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(d.Embedding), s.dimensions)
		}
		vecs[d.Index] = d.Embedding
	}
	for _, v := range vecs {
		if v == nil {
			return nil, errNoEmbedding
		}
	}
	return vecs, nil
}

func clampRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

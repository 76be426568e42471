// Package scoring computes the relevance of a video to a set of search keywords.
package scoring

import (
	"context"
	"strings"
	"time"

	"github.com/timmy/sportsclips/internal/logger"
)

const (
	neutralSemantic    = 0.5
	maxEmbedTextLength = 4000
)

// Embedder produces text embeddings. EmbedQuery is tuned for short search intents.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Weights of the relevance signals. They should sum to 1.
type Weights struct {
	Semantic       float64
	KeywordDensity float64
	Recency        float64
	Engagement     float64
	TitleRelevance float64
}

// DefaultWeights returns 0.40 / 0.20 / 0.15 / 0.10 / 0.15.
func DefaultWeights() Weights {
	return Weights{
		Semantic:       0.40,
		KeywordDensity: 0.20,
		Recency:        0.15,
		Engagement:     0.10,
		TitleRelevance: 0.15,
	}
}

// Input is the scored video.
type Input struct {
	Transcript  string
	Title       string
	Description string
	PublishedAt time.Time
	ViewCount   int64
	LikeCount   int64
}

// Breakdown holds each signal in [0,1] and the weighted total.
type Breakdown struct {
	Semantic       float64 `json:"semantic"`
	KeywordDensity float64 `json:"keyword_density"`
	Recency        float64 `json:"recency"`
	Engagement     float64 `json:"engagement"`
	TitleRelevance float64 `json:"title_relevance"`
	Total          float64 `json:"total"`
}

// Map returns the breakdown as a JSON-friendly map.
func (b Breakdown) Map() map[string]interface{} {
	return map[string]interface{}{
		"semantic":        b.Semantic,
		"keyword_density": b.KeywordDensity,
		"recency":         b.Recency,
		"engagement":      b.Engagement,
		"title_relevance": b.TitleRelevance,
		"total":           b.Total,
	}
}

// Engine scores videos. The embedder may be nil.
type Engine struct {
	embedder       Embedder
	recencyMaxDays int
	now            func() time.Time
}

// NewEngine creates an Engine. recencyMaxDays <= 0 uses 30.
func NewEngine(embedder Embedder, recencyMaxDays int) *Engine {
	if recencyMaxDays <= 0 {
		recencyMaxDays = defaultRecencyMaxDays
	}
	return &Engine{
		embedder:       embedder,
		recencyMaxDays: recencyMaxDays,
		now:            time.Now,
	}
}

// SetClock replaces the time source used for recency.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Score returns the weighted relevance in [0,1] and its breakdown. The semantic signal is
// neutral when embeddings are off or the embedder fails.
func (e *Engine) Score(ctx context.Context, in Input, keywords []string, sport string, useEmbeddings bool, w Weights) (float64, Breakdown) {
	b := Breakdown{
		Semantic:       neutralSemantic,
		KeywordDensity: clamp01(KeywordDensity(in.Transcript, keywords), 0),
		Recency:        clamp01(Recency(in.PublishedAt, e.now(), e.recencyMaxDays), 0.3),
		Engagement:     clamp01(Engagement(in.ViewCount, in.LikeCount), 0),
		TitleRelevance: clamp01(TitleRelevance(in.Title, keywords), 0),
	}
	if useEmbeddings && e.embedder != nil {
		b.Semantic = clamp01(e.semantic(ctx, in, keywords, sport), neutralSemantic)
	}

	total := w.Semantic*b.Semantic +
		w.KeywordDensity*b.KeywordDensity +
		w.Recency*b.Recency +
		w.Engagement*b.Engagement +
		w.TitleRelevance*b.TitleRelevance
	b.Total = clamp01(total, 0)
	return b.Total, b
}

func (e *Engine) semantic(ctx context.Context, in Input, keywords []string, sport string) float64 {
	query := strings.TrimSpace(sport + " " + strings.Join(keywords, " "))
	text := in.Transcript
	if text == "" {
		text = in.Title + "\n" + in.Description
	}
	if len(text) > maxEmbedTextLength {
		text = text[:maxEmbedTextLength]
	}

	qv, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Query embedding failed, using neutral semantic score")
		return neutralSemantic
	}
	tv, err := e.embedder.Embed(ctx, text)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Transcript embedding failed, using neutral semantic score")
		return neutralSemantic
	}
	return CosineSimilarity(qv, tv)
}

// SimpleScore is the embedding-free variant: 0.7 x keyword density + 0.3 x title relevance.
func SimpleScore(transcript, title string, keywords []string) float64 {
	return clamp01(0.7*KeywordDensity(transcript, keywords)+0.3*TitleRelevance(title, keywords), 0)
}

// MetadataScore scores a video with no transcript: 0.5 keyword match on title and
// description, 0.25 engagement, 0.25 recency.
func MetadataScore(in Input, keywords []string, now time.Time, maxAgeDays int) (float64, Breakdown) {
	b := Breakdown{
		KeywordDensity: clamp01(KeywordDensity(in.Title+" "+in.Description, keywords), 0),
		Engagement:     clamp01(Engagement(in.ViewCount, in.LikeCount), 0),
		Recency:        clamp01(Recency(in.PublishedAt, now, maxAgeDays), 0.3),
		TitleRelevance: clamp01(TitleRelevance(in.Title, keywords), 0),
	}
	b.Total = clamp01(0.5*b.KeywordDensity+0.25*b.Engagement+0.25*b.Recency, 0)
	return b.Total, b
}

// Combine averages a heuristic score with an AI estimate when one is present.
func Combine(heuristic float64, ai *float64) float64 {
	if ai == nil {
		return clamp01(heuristic, 0)
	}
	return clamp01((heuristic+clamp01(*ai, heuristic))/2, 0)
}

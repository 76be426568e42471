package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/scoring"
)

// ErrSearchDisabled is returned when no vector index or embedder is configured.
var ErrSearchDisabled = errors.New("candidate search is not configured")

// VectorSearcher finds candidate vectors near a query vector.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, sport string) ([]repository.IndexHit, error)
}

// SearchService runs semantic search over indexed candidates.
type SearchService struct {
	index      VectorSearcher
	embedder   scoring.Embedder
	candidates *repository.CandidateRepository
}

// NewSearchService creates a SearchService. index and embedder may be nil, which disables search.
func NewSearchService(index VectorSearcher, embedder scoring.Embedder, candidates *repository.CandidateRepository) *SearchService {
	return &SearchService{index: index, embedder: embedder, candidates: candidates}
}

// CandidateSearchRequest represents a text search request.
type CandidateSearchRequest struct {
	Query string `json:"query" form:"q" binding:"required"`
	Sport string `json:"sport" form:"sport"`
	TopK  int    `json:"top_k" form:"top_k"`

	// MinScore drops hits less similar than this cosine score.
	MinScore float32 `json:"min_score" form:"min_score"`
}

// CandidateSearchResult is one hit, joined with the stored candidate.
type CandidateSearchResult struct {
	CandidateID    string  `json:"candidate_id"`
	Score          float32 `json:"score"`
	Title          string  `json:"title"`
	Sport          string  `json:"sport"`
	RelevanceScore float64 `json:"relevance_score"`
	Status         string  `json:"status,omitempty"`
	YouTubeID      string  `json:"youtube_id,omitempty"`
	Summary        string  `json:"summary,omitempty"`
}

// Enabled reports whether search can run.
func (s *SearchService) Enabled() bool {
	return s.index != nil && s.embedder != nil
}

// Search embeds the query and returns the closest candidates.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: query text, optional sport filter and result count (default 20, max 100).
// Returns:
//   - []CandidateSearchResult: hits ordered by similarity.
//   - error: ErrSearchDisabled, or an embedding/index failure.
func (s *SearchService) Search(ctx context.Context, req *CandidateSearchRequest) ([]CandidateSearchResult, error) {
	if !s.Enabled() {
		return nil, ErrSearchDisabled
	}
	if req.TopK <= 0 {
		req.TopK = 20
	}
	if req.TopK > 100 {
		req.TopK = 100
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	ctx = logger.SetComponent(ctx, "search")
	logger.CtxInfo(ctx, "Performing candidate search: query=%q, sport=%q, top_k=%d", query, req.Sport, req.TopK)

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	hits, err := s.index.Search(ctx, vector, req.TopK, req.Sport)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]CandidateSearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < req.MinScore {
			continue
		}
		r := CandidateSearchResult{CandidateID: hit.CandidateID, Score: hit.Score}
		if hit.Payload != nil {
			r.Title = hit.Payload.Title
			r.Sport = hit.Payload.Sport
			r.RelevanceScore = hit.Payload.RelevanceScore
		}
		if s.candidates != nil {
			c, err := s.candidates.GetByID(ctx, hit.CandidateID)
			if errors.Is(err, repository.ErrNotFound) {
				// index entries can outlive their rows
				continue
			}
			if err != nil {
				return nil, err
			}
			r.Status = string(c.Status)
			r.Summary = c.AISummary
			r.RelevanceScore = c.RelevanceScore
			if c.Video != nil {
				r.YouTubeID = c.Video.YouTubeID
				r.Title = c.Video.Title
			}
		}
		results = append(results, r)
	}
	return results, nil
}

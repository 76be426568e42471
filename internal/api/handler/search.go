package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsclips/internal/service"
)

// SearchHandler serves free-text lookup of clip candidates, e.g. "walk-off homer".
type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type candidateSearchResponse struct {
	Query   string                          `json:"query"`
	Sport   string                          `json:"sport,omitempty"`
	Results []service.CandidateSearchResult `json:"results"`
	Total   int                             `json:"total"`
	TookMs  int64                           `json:"took_ms"`
}

// SearchCandidates handles GET /api/v1/candidates/search?q=&sport=&top_k=&min_score=.
// A missing q is a 400 even when search is not configured.
func (h *SearchHandler) SearchCandidates(c *gin.Context) {
	var req service.CandidateSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	start := time.Now()
	results, err := h.search.Search(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidateSearchResponse{
		Query:   req.Query,
		Sport:   req.Sport,
		Results: results,
		Total:   len(results),
		TookMs:  time.Since(start).Milliseconds(),
	})
}

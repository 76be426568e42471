package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/service"
)

// NewsHandler handles news enrichment and clip pairing.
type NewsHandler struct {
	news    *repository.NewsRepository
	matches *repository.ClipMatchRepository
	pairing *service.PairingService
}

// NewNewsHandler creates a new news handler.
func NewNewsHandler(news *repository.NewsRepository, matches *repository.ClipMatchRepository, pairing *service.PairingService) *NewsHandler {
	return &NewsHandler{news: news, matches: matches, pairing: pairing}
}

// List handles GET /api/v1/sources/:id/news.
func (h *NewsHandler) List(c *gin.Context) {
	items, err := h.news.ListBySource(c.Request.Context(), c.Param("id"), queryLimit(c, 50, 500))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

// EnrichRequest carries externally computed importance and entities.
type EnrichRequest struct {
	ImportanceScore *float64 `json:"importance_score" binding:"omitempty,min=0,max=1"`
	Teams           []string `json:"teams"`
	Players         []string `json:"players"`
	Topics          []string `json:"topics"`
}

// Enrich handles PATCH /api/v1/news/:id.
func (h *NewsHandler) Enrich(c *gin.Context) {
	var req EnrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.news.GetByID(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if req.ImportanceScore != nil {
		if err := h.news.SetImportance(ctx, id, *req.ImportanceScore); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.Teams != nil || req.Players != nil || req.Topics != nil {
		if err := h.news.SetEntities(ctx, id, req.Teams, req.Players, req.Topics); err != nil {
			respondError(c, err)
			return
		}
	}
	item, err := h.news.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Pair handles POST /api/v1/news/:id/pair.
func (h *NewsHandler) Pair(c *gin.Context) {
	matches, err := h.pairing.PairNewsItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"total":   len(matches),
	})
}

// PairPendingRequest bounds a pairing pass. Zero values take the configured defaults.
type PairPendingRequest struct {
	MinImportance float64 `json:"min_importance" binding:"omitempty,min=0,max=1"`
	Limit         int     `json:"limit" binding:"omitempty,min=1,max=1000"`
}

// PairPending handles POST /api/v1/news/pair-pending.
func (h *NewsHandler) PairPending(c *gin.Context) {
	var req PairPendingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	stats, err := h.pairing.PairPending(c.Request.Context(), req.MinImportance, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.CtxInfo(c.Request.Context(), "Pairing pass requested: considered=%d, paired=%d", stats.Considered, stats.Paired)
	c.JSON(http.StatusOK, stats)
}

// Matches handles GET /api/v1/news/:id/matches.
func (h *NewsHandler) Matches(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.news.GetByID(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	matches, err := h.matches.ListByNews(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"total":   len(matches),
	})
}

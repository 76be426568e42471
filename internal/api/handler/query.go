package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/schedule"
)

// QueryHandler manages query definitions, their runs and the candidates they produce.
type QueryHandler struct {
	queries    *repository.QueryDefinitionRepository
	runs       *repository.RunRepository
	candidates *repository.CandidateRepository
	scheduler  *schedule.Scheduler
	orgID      string
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(
	queries *repository.QueryDefinitionRepository,
	runs *repository.RunRepository,
	candidates *repository.CandidateRepository,
	scheduler *schedule.Scheduler,
	orgID string,
) *QueryHandler {
	return &QueryHandler{queries: queries, runs: runs, candidates: candidates, scheduler: scheduler, orgID: orgID}
}

// CreateQueryRequest represents the create query definition API request.
type CreateQueryRequest struct {
	Name          string   `json:"name" binding:"required"`
	Sport         string   `json:"sport" binding:"required"`
	Keywords      []string `json:"keywords" binding:"required,min=1"`
	ChannelIDs    []string `json:"channel_ids"`
	RecencyDays   int      `json:"recency_days" binding:"omitempty,min=1,max=365"`
	MaxResults    int      `json:"max_results" binding:"omitempty,min=1,max=500"`
	TopN          int      `json:"top_n" binding:"omitempty,min=1,max=1000"`
	UseEmbeddings bool     `json:"use_embeddings"`
	UseAI         bool     `json:"use_ai"`
	ScheduleRequest
}

// Create handles POST /api/v1/queries.
func (h *QueryHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	def := &domain.QueryDefinition{
		OrgID:         h.orgID,
		Name:          req.Name,
		Sport:         req.Sport,
		Keywords:      domain.StringArray(req.Keywords),
		ChannelIDs:    domain.StringArray(req.ChannelIDs),
		RecencyDays:   req.RecencyDays,
		MaxResults:    req.MaxResults,
		TopN:          req.TopN,
		UseEmbeddings: req.UseEmbeddings,
		UseAI:         req.UseAI,
		Schedule:      req.ScheduleRequest.toDomain(),
	}
	if msg := schedule.ValidateSchedule(def.Schedule); msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid schedule", "errors": []string{msg}})
		return
	}
	def.NextRunAt = firstRun(def.Schedule)

	if err := h.queries.Create(ctx, def); err != nil {
		respondError(c, err)
		return
	}
	logger.Audit(ctx, "query_definition.created", logger.Fields{logger.FieldQueryID: def.ID})
	c.JSON(http.StatusCreated, def)
}

// List handles GET /api/v1/queries.
func (h *QueryHandler) List(c *gin.Context) {
	defs, err := h.queries.List(c.Request.Context(), h.orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queries": defs,
		"total":   len(defs),
	})
}

// Run handles POST /api/v1/queries/:id/run. It queues a manual run and answers 202.
func (h *QueryHandler) Run(c *gin.Context) {
	run, err := h.scheduler.TriggerQuery(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// Runs handles GET /api/v1/queries/:id/runs.
func (h *QueryHandler) Runs(c *gin.Context) {
	runs, err := h.runs.ListQueryRuns(c.Request.Context(), c.Param("id"), queryLimit(c, 20, 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetRun handles GET /api/v1/query-runs/:id, the progress polling endpoint.
func (h *QueryHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetQueryRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// RunCandidates handles GET /api/v1/query-runs/:id/candidates.
func (h *QueryHandler) RunCandidates(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.runs.GetQueryRun(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	candidates, err := h.candidates.ListByRun(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidates": candidates,
		"total":      len(candidates),
	})
}

// GetCandidate handles GET /api/v1/candidates/:id.
func (h *QueryHandler) GetCandidate(c *gin.Context) {
	cand, err := h.candidates.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cand)
}

// CandidateStatusRequest represents a candidate review decision.
type CandidateStatusRequest struct {
	Status domain.CandidateStatus `json:"status" binding:"required"`
}

// UpdateCandidateStatus handles PATCH /api/v1/candidates/:id/status. Illegal transitions answer 409.
func (h *QueryHandler) UpdateCandidateStatus(c *gin.Context) {
	var req CandidateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	cand, err := h.candidates.UpdateStatus(ctx, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Audit(ctx, "candidate.status_changed", logger.Fields{"candidate_id": cand.ID, logger.FieldStatus: cand.Status})
	c.JSON(http.StatusOK, cand)
}

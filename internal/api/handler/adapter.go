package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/source/registry"
)

// AdapterHandler exposes the adapter registry.
type AdapterHandler struct {
	registry *registry.Registry
}

// NewAdapterHandler creates a new adapter handler.
func NewAdapterHandler(reg *registry.Registry) *AdapterHandler {
	return &AdapterHandler{registry: reg}
}

// List handles GET /api/v1/adapters.
func (h *AdapterHandler) List(c *gin.Context) {
	meta := h.registry.Metadata()
	c.JSON(http.StatusOK, gin.H{
		"adapters": meta,
		"total":    len(meta),
	})
}

// Validate handles POST /api/v1/adapters/:type/validate. The body is the config object.
func (h *AdapterHandler) Validate(c *gin.Context) {
	var cfg domain.JSONMap
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.registry.Validate(domain.SourceType(c.Param("type")), cfg)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

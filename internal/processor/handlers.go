package processor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/payrails/internal/risk"
)

// Assessor produces the freeze risk assessment that drives primary health.
type Assessor interface {
	Analyze(ctx context.Context) (*risk.Analysis, error)
}

// Handler exposes processor capabilities and health over HTTP.
type Handler struct {
	registry *Registry
	assessor Assessor
	logger   *slog.Logger
}

// NewHandler creates a new processor handler.
func NewHandler(registry *Registry, assessor Assessor, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, assessor: assessor, logger: logger}
}

// RegisterRoutes registers processor endpoints on the router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/processors", h.listProcessors)
	r.GET("/processors/health", h.getHealth)
}

// listProcessors returns the capability table.
// GET /v1/processors
func (h *Handler) listProcessors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"primary":    h.registry.Primary(),
		"processors": h.registry.Capabilities(),
	})
}

// getHealth runs a fresh assessment and reports per-processor health.
// GET /v1/processors/health
func (h *Handler) getHealth(c *gin.Context) {
	analysis, err := h.assessor.Analyze(c.Request.Context())
	if err != nil {
		if !errors.Is(err, risk.ErrUnavailable) {
			h.logger.Error("health assessment failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "health assessment failed",
			})
			return
		}
		// Degrade to neutral assumptions rather than failing the read.
		h.logger.Warn("risk assessment unavailable, reporting neutral health", "error", err)
		analysis = nil
	}

	healths := h.registry.AssessHealth(analysis)

	ordered := make([]*Health, 0, len(healths))
	for _, id := range h.registry.IDs() {
		ordered = append(ordered, healths[id])
	}
	c.JSON(http.StatusOK, gin.H{
		"primary":    h.registry.Primary(),
		"processors": ordered,
	})
}

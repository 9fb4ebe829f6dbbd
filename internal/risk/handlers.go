package risk

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the freeze risk assessment over HTTP.
type Handler struct {
	analyzer *Analyzer
	logger   *slog.Logger
}

// NewHandler creates a new risk handler.
func NewHandler(analyzer *Analyzer, logger *slog.Logger) *Handler {
	return &Handler{analyzer: analyzer, logger: logger}
}

// RegisterRoutes registers risk endpoints on the router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/risk", h.getAssessment)
}

// getAssessment runs a fresh freeze risk assessment.
// GET /v1/risk
func (h *Handler) getAssessment(c *gin.Context) {
	analysis, err := h.analyzer.Analyze(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "risk_unavailable",
				"message": "ledger could not serve the analysis window",
			})
			return
		}
		h.logger.Error("risk assessment failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "risk assessment failed",
		})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

package routing

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/payrails/internal/validation"
)

// Handler exposes routing decisions over HTTP.
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

// NewHandler creates a new routing handler.
func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes registers routing endpoints on the router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/route", h.routePayment)
}

type routeRequest struct {
	Amount         int64  `json:"amount" binding:"required"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	ComplexityHint string `json:"complexity_hint"`
}

// routePayment selects a processor for one transaction.
// POST /v1/route
func (h *Handler) routePayment(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if errs := validation.Validate(
		validation.PositiveAmount("amount", req.Amount),
		validation.ValidCurrency("currency", req.Currency),
		validation.MaxLength("description", req.Description, validation.MaxStringLength),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": errs,
		})
		return
	}

	decision, err := h.engine.Route(c.Request.Context(), &Request{
		Amount:         req.Amount,
		Currency:       strings.ToLower(req.Currency),
		Description:    validation.SanitizeString(req.Description, validation.MaxStringLength),
		ComplexityHint: req.ComplexityHint,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			return
		}
		h.logger.Error("routing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "routing failed",
		})
		return
	}

	c.JSON(http.StatusOK, decision)
}

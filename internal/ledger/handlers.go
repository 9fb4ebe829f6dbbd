package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/payrails/internal/pagination"
	"github.com/mbd888/payrails/internal/validation"
)

// Handler provides HTTP endpoints for ledger activity.
type Handler struct {
	ledger *Ledger
	logger *slog.Logger
}

// NewHandler creates a new ledger handler.
func NewHandler(ledger *Ledger, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// RegisterRoutes registers ledger endpoints on the router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.recordTransaction)
	r.GET("/transactions", h.listTransactions)
}

type recordTransactionRequest struct {
	Type        string `json:"type" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// recordTransaction ingests a payment event into the ledger.
// POST /v1/transactions
func (h *Handler) recordTransaction(c *gin.Context) {
	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("type", req.Type),
		validation.PositiveAmount("amount", req.Amount),
		validation.ValidCurrency("currency", req.Currency),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	txn := &Transaction{
		Type:        Type(req.Type),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: validation.SanitizeString(req.Description, 500),
	}

	if err := h.ledger.Record(c.Request.Context(), txn); err != nil {
		switch {
		case errors.Is(err, ErrInvalidType):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_type",
				"message": "type must be charge, refund, or adjustment",
			})
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "amount must be a positive number of cents",
			})
		case errors.Is(err, ErrReadOnly):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "ledger_read_only",
				"message": "this ledger source does not accept writes",
			})
		default:
			h.logger.Error("failed to record transaction", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "failed to record transaction",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, txn)
}

// listTransactions returns recent ledger activity, newest first.
// GET /v1/transactions?hours=24&limit=50&cursor=...
func (h *Handler) listTransactions(c *gin.Context) {
	hours := 24
	if v := c.Query("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 24*90 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_hours",
				"message": "hours must be between 1 and 2160",
			})
			return
		}
		hours = parsed
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be between 1 and 200",
			})
			return
		}
		limit = parsed
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is not valid",
		})
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	txns, err := h.ledger.Window(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "failed to list transactions",
		})
		return
	}

	page, next, more := paginate(txns, cursor, limit)

	c.JSON(http.StatusOK, gin.H{
		"transactions": page,
		"count":        len(page),
		"window_hours": hours,
		"next_cursor":  next,
		"has_more":     more,
	})
}

// paginate reverses the window to newest-first, resumes after cursor,
// and computes the next page cursor.
func paginate(txns []*Transaction, cursor *pagination.Cursor, limit int) ([]*Transaction, string, bool) {
	// Window returns oldest-first; list responses are newest-first.
	ordered := make([]*Transaction, len(txns))
	for i, txn := range txns {
		ordered[len(txns)-1-i] = txn
	}

	if cursor != nil {
		for i, txn := range ordered {
			if txn.Created.Before(cursor.CreatedAt) ||
				(txn.Created.Equal(cursor.CreatedAt) && txn.ID < cursor.ID) {
				ordered = ordered[i:]
				break
			}
			if i == len(ordered)-1 {
				ordered = nil
			}
		}
	}

	if len(ordered) > limit+1 {
		ordered = ordered[:limit+1]
	}
	return pagination.ComputePage(ordered, limit, func(t *Transaction) (time.Time, string) {
		return t.Created, t.ID
	})
}

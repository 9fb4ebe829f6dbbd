package routing

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, assessor Assessor) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := newTestEngine(t, assessor)
	h := NewHandler(e, slog.Default())

	r := gin.New()
	v1 := r.Group("/v1")
	h.RegisterRoutes(v1)
	return r
}

func postRoute(t *testing.T, r *gin.Engine, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/route", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRoutePayment_Success(t *testing.T) {
	r := setupRouter(t, &fakeAssessor{analysis: lowRisk()})

	w := postRoute(t, r, map[string]any{
		"amount":      20000,
		"currency":    "usd",
		"description": "NFT marketplace purchase",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var d Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "crossmint", d.SelectedProcessor)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, ModeRules, d.DecisionMode)
	assert.LessOrEqual(t, len(d.FallbackChain), maxFallbacks)
}

func TestRoutePayment_MissingAmount(t *testing.T) {
	r := setupRouter(t, &fakeAssessor{analysis: lowRisk()})

	w := postRoute(t, r, map[string]any{"description": "order"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutePayment_NegativeAmount(t *testing.T) {
	r := setupRouter(t, &fakeAssessor{analysis: lowRisk()})

	w := postRoute(t, r, map[string]any{"amount": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestRoutePayment_BadCurrency(t *testing.T) {
	r := setupRouter(t, &fakeAssessor{analysis: lowRisk()})

	w := postRoute(t, r, map[string]any{"amount": 1000, "currency": "dollars"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/payrails/internal/risk"
)

type fakeAssessor struct {
	analysis *risk.Analysis
	err      error
}

func (f *fakeAssessor) Analyze(ctx context.Context) (*risk.Analysis, error) {
	return f.analysis, f.err
}

func setupRouter(t *testing.T, assessor Assessor) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := newTestRegistry(t, "stripe")
	h := NewHandler(reg, assessor, slog.Default())

	r := gin.New()
	v1 := r.Group("/v1")
	h.RegisterRoutes(v1)
	return r
}

func TestListProcessors(t *testing.T) {
	r := setupRouter(t, &fakeAssessor{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/processors", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Primary    string       `json:"primary"`
		Processors []Capability `json:"processors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "stripe", resp.Primary)
	assert.Len(t, resp.Processors, 6)
	assert.Equal(t, "stripe", resp.Processors[0].ID)
}

func TestGetHealth(t *testing.T) {
	assessor := &fakeAssessor{analysis: analysisWith(risk.LevelCritical, 0.9)}
	r := setupRouter(t, assessor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/processors/health", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Primary    string    `json:"primary"`
		Processors []*Health `json:"processors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Processors, 6)
	assert.Equal(t, "stripe", resp.Processors[0].ProcessorID)
	assert.Equal(t, StatusFrozen, resp.Processors[0].Status)
	assert.Equal(t, StatusHealthy, resp.Processors[1].Status)
}

func TestGetHealth_RiskUnavailableDegrades(t *testing.T) {
	assessor := &fakeAssessor{err: risk.ErrUnavailable}
	r := setupRouter(t, assessor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/processors/health", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(StatusUnavailable))
}

func TestGetHealth_InternalError(t *testing.T) {
	assessor := &fakeAssessor{err: errors.New("boom")}
	r := setupRouter(t, assessor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/processors/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	cfg := Config{
		APIURL: ts.URL,
		APIKey: "sk_test_key",
	}
	client := NewPayrailsClient(cfg)
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_AuthHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewPayrailsClient(Config{APIURL: ts.URL, APIKey: "sk_secret123"})
	_, err := client.AssessRisk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk_secret123", gotAuth)
}

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "risk_unavailable",
			"message": "ledger could not serve the analysis window",
		})
	}))
	defer ts.Close()

	client := NewPayrailsClient(Config{APIURL: ts.URL})
	_, err := client.AssessRisk(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "ledger could not serve the analysis window")
}

func TestClient_DoRequest_ConnectionRefused(t *testing.T) {
	client := NewPayrailsClient(Config{APIURL: "http://127.0.0.1:1"})
	_, err := client.AssessRisk(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleRoutePayment(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/route", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(20000), body["amount"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"selected_processor":         "crossmint",
			"confidence":                 0.95,
			"reasoning":                  "category crypto matched, crossmint is the best fit",
			"fallback_chain":             []string{"visa", "adyen", "square"},
			"freeze_avoidance_triggered": false,
			"primary_status":             "healthy",
			"risk_level":                 "low",
		})
	}))
	defer done()

	result, err := h.HandleRoutePayment(context.Background(), makeRequest(map[string]any{
		"amount":      20000,
		"description": "NFT marketplace purchase",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "crossmint")
	assert.Contains(t, text, "visa -> adyen -> square")
}

func TestHandleRoutePayment_MissingAmount(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called for invalid input")
	}))
	defer done()

	result, err := h.HandleRoutePayment(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAssessRisk(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/risk", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"overall_risk":       "critical",
			"freeze_probability": 0.9,
			"transaction_count":  101,
			"window_hours":       24,
			"factors": []map[string]any{
				{"pattern": "chargeback_pattern", "severity": "critical", "description": "chargeback rate 2.0% exceeds 1.0% freeze threshold", "timeline": "immediate"},
			},
			"recommendations": []string{"Immediate action required"},
		})
	}))
	defer done()

	result, err := h.HandleAssessRisk(context.Background(), makeRequest(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "critical")
	assert.Contains(t, text, "90%")
	assert.Contains(t, text, "chargeback rate")
}

func TestHandleProcessorHealth(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/processors/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"primary": "stripe",
			"processors": []map[string]any{
				{"processor_id": "stripe", "status": "frozen", "freeze_risk": 0.9, "freeze_reasons": []string{"chargeback rate 2.0% exceeds 1.0% freeze threshold"}, "recommended_action": "Route new volume away from this processor immediately"},
				{"processor_id": "crossmint", "status": "healthy", "freeze_risk": 0.1},
			},
		})
	}))
	defer done()

	result, err := h.HandleProcessorHealth(context.Background(), makeRequest(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "stripe: frozen")
	assert.Contains(t, text, "crossmint: healthy")
}

func TestHandleRecordTransaction(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transactions", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "txn_abc123", "type": "charge", "amount": 5000,
		})
	}))
	defer done()

	result, err := h.HandleRecordTransaction(context.Background(), makeRequest(map[string]any{
		"type": "charge", "amount": 5000,
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "txn_abc123")
}

func TestHandleRecordTransaction_Invalid(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called for invalid input")
	}))
	defer done()

	result, err := h.HandleRecordTransaction(context.Background(), makeRequest(map[string]any{
		"amount": 5000,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListTransactions(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "48", r.URL.Query().Get("hours"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transactions": []map[string]any{
				{"id": "txn_1", "type": "charge", "amount": 5000, "currency": "usd", "description": "order"},
			},
			"count":        1,
			"window_hours": 48,
		})
	}))
	defer done()

	result, err := h.HandleListTransactions(context.Background(), makeRequest(map[string]any{
		"hours": 48,
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "charge")
	assert.Contains(t, text, "order")
}

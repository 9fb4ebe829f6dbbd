package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the routing API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	APIKey string // Optional bearer token
}

// PayrailsClient is a pure HTTP client for the routing API.
type PayrailsClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewPayrailsClient creates a new client for the routing API.
func NewPayrailsClient(cfg Config) *PayrailsClient {
	return &PayrailsClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *PayrailsClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// RoutePayment requests a routing decision for a transaction.
func (c *PayrailsClient) RoutePayment(ctx context.Context, amount int64, currency, description string) (json.RawMessage, error) {
	body := map[string]any{
		"amount":      amount,
		"description": description,
	}
	if currency != "" {
		body["currency"] = currency
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/route", nil, body)
}

// AssessRisk runs a fresh freeze risk assessment.
func (c *PayrailsClient) AssessRisk(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/risk", nil, nil)
}

// ProcessorHealth returns health for every processor.
func (c *PayrailsClient) ProcessorHealth(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/processors/health", nil, nil)
}

// RecordTransaction records a balance transaction in the ledger.
func (c *PayrailsClient) RecordTransaction(ctx context.Context, txnType string, amount int64, description string) (json.RawMessage, error) {
	body := map[string]any{
		"type":        txnType,
		"amount":      amount,
		"description": description,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/transactions", nil, body)
}

// ListTransactions returns recent ledger activity.
func (c *PayrailsClient) ListTransactions(ctx context.Context, hours int) (json.RawMessage, error) {
	q := url.Values{}
	if hours > 0 {
		q.Set("hours", strconv.Itoa(hours))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/transactions", q, nil)
}

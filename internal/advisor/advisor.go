// Package advisor calls an external decision service for routing advice.
//
// The advisor is strictly optional. It may pick a different processor than
// the deterministic rules would, but it never controls fallback chains or
// freeze detection, and any failure degrades to the deterministic path.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mbd888/payrails/internal/circuitbreaker"
)

const breakerKey = "advisor"

// ErrUnavailable is returned when the advisor cannot be reached, including
// when its circuit is open.
var ErrUnavailable = errors.New("advisor unavailable")

// ProcessorOption describes one routable processor for the advisor.
type ProcessorOption struct {
	ID               string   `json:"id"`
	MaxAmount        int64    `json:"max_amount_cents"`
	BestFor          []string `json:"best_for"`
	FreezeResistance float64  `json:"freeze_resistance"`
	Status           string   `json:"status"`
	FreezeRisk       float64  `json:"freeze_risk"`
}

// Context is the structured routing context sent to the advisor.
type Context struct {
	Amount           int64             `json:"amount_cents"`
	Currency         string            `json:"currency"`
	Description      string            `json:"description"`
	PrimaryProcessor string            `json:"primary_processor"`
	PrimaryStatus    string            `json:"primary_status"`
	FreezeRisk       float64           `json:"freeze_risk"`
	Available        []ProcessorOption `json:"available_processors"`
	ComplexityHint   string            `json:"complexity_hint,omitempty"`
}

// Advice is the advisor's response. The fallback chain is advisory only;
// routing builds its own.
type Advice struct {
	SelectedProcessor string   `json:"selected_processor"`
	Confidence        float64  `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
	FallbackChain     []string `json:"fallback_chain,omitempty"`
}

// Client is an HTTP client for the decision advisor service.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewClient creates an advisor client. Timeout bounds each call end to end.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(3, time.Minute),
		logger:  logger,
	}
}

// Decide requests a routing decision for the given context.
func (c *Client) Decide(ctx context.Context, rc *Context) (*Advice, error) {
	if !c.breaker.Allow(breakerKey) {
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}

	body, err := json.Marshal(rc)
	if err != nil {
		return nil, fmt.Errorf("encode advisor context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/decisions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure(breakerKey)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	var advice Advice
	if err := json.NewDecoder(resp.Body).Decode(&advice); err != nil {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("decode advisor response: %w", err)
	}
	c.breaker.RecordSuccess(breakerKey)

	if advice.SelectedProcessor == "" {
		return nil, errors.New("advisor returned empty selection")
	}
	return &advice, nil
}

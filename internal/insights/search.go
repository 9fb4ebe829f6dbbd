package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mbd888/payrails/internal/circuitbreaker"
)

const (
	braveSearchURL = "https://api.search.brave.com/res/v1/web/search"
	breakerKey     = "brave_search"
)

// SearchClient derives processor adjustments from live web search results.
// It is best-effort: a failed or tripped search returns an error and the
// caller falls back to synthetic intelligence.
type SearchClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewSearchClient creates a Brave Search backed intelligence source.
func NewSearchClient(apiKey string, logger *slog.Logger) *SearchClient {
	return &SearchClient{
		apiKey:  apiKey,
		baseURL: braveSearchURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		breaker: circuitbreaker.New(3, 2*time.Minute),
		logger:  logger,
	}
}

type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Fetch searches recent news per processor and converts headline signals
// into adjustments.
func (s *SearchClient) Fetch(ctx context.Context, processorIDs []string) (map[string]Adjustment, error) {
	out := make(map[string]Adjustment, len(processorIDs))
	for _, id := range processorIDs {
		adj, err := s.fetchOne(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", id, err)
		}
		out[id] = adj
	}
	return out, nil
}

func (s *SearchClient) fetchOne(ctx context.Context, processorID string) (Adjustment, error) {
	if !s.breaker.Allow(breakerKey) {
		return Adjustment{}, fmt.Errorf("search circuit open")
	}

	q := url.Values{}
	q.Set("q", processorID+" payment processor news")
	q.Set("count", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Adjustment{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)

	resp, err := s.httpc.Do(req)
	if err != nil {
		s.breaker.RecordFailure(breakerKey)
		return Adjustment{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.breaker.RecordFailure(breakerKey)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Adjustment{}, fmt.Errorf("search returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.breaker.RecordFailure(breakerKey)
		return Adjustment{}, fmt.Errorf("decode search response: %w", err)
	}
	s.breaker.RecordSuccess(breakerKey)

	var adj Adjustment
	for _, r := range parsed.Web.Results {
		text := strings.ToLower(r.Title + " " + r.Description)
		applySignals(&adj, text, r.URL)
	}
	return adj, nil
}

// applySignals scans one search result for headline-level signals. The
// magnitudes are deliberately small relative to capability and health
// terms in routing scores.
func applySignals(adj *Adjustment, text, sourceURL string) {
	addReason := func(reason string) {
		adj.Reasons = append(adj.Reasons, reason+" ("+sourceURL+")")
	}

	switch {
	case containsAny(text, "outage", "downtime", "service disruption"):
		adj.ReliabilityBonus -= 2
		addReason("reported service disruption")
	case containsAny(text, "uptime", "reliability award", "sla improvement"):
		adj.ReliabilityBonus += 1
		addReason("positive reliability coverage")
	}

	switch {
	case containsAny(text, "fee increase", "raises fees", "pricing increase"):
		adj.FeeAdjustment += 1.5
		addReason("fee increase reported")
	case containsAny(text, "fee cut", "lowers fees", "pricing cut"):
		adj.FeeAdjustment -= 1
		addReason("fee reduction reported")
	}

	if containsAny(text, "partnership", "expansion", "launches") {
		adj.PriorityBoost += 1.5
		addReason("growth coverage")
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

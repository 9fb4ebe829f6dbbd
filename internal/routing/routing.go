// Package routing selects a payment processor for each transaction.
//
// Selection is deterministic: business category and amount pick a default,
// the primary processor's freeze risk can force a detour to an alternative,
// and a fallback chain of healthy processors backs every decision. An
// optional external advisor may override which processor is selected, but
// never the fallback chain and never the freeze detection itself.
package routing

import (
	"errors"
	"time"

	"github.com/mbd888/payrails/internal/processor"
	"github.com/mbd888/payrails/internal/risk"
)

// ErrInvalidRequest is returned for route requests that fail validation.
var ErrInvalidRequest = errors.New("invalid route request")

// Decision modes.
const (
	ModeRules   = "rules"
	ModeAdvisor = "advisor"
)

// Request describes one transaction to route. Amount is minor units.
type Request struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	ComplexityHint string `json:"complexity_hint,omitempty"`
}

// Decision is the routing outcome for one request.
type Decision struct {
	ID                string           `json:"id"`
	SelectedProcessor string           `json:"selected_processor"`
	Confidence        float64          `json:"confidence"`
	Reasoning         string           `json:"reasoning"`
	FallbackChain     []string         `json:"fallback_chain"`
	FreezeAvoidance   bool             `json:"freeze_avoidance_triggered"`
	DecisionMode      string           `json:"decision_mode"`
	PrimaryStatus     processor.Status `json:"primary_status"`
	RiskLevel         risk.Level       `json:"risk_level"`
	FreezeProbability float64          `json:"freeze_probability"`
	ProcessingTimeMS  int64            `json:"processing_time_ms"`
	DecidedAt         time.Time        `json:"decided_at"`
}

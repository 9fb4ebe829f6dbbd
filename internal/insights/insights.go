// Package insights supplies market intelligence about payment processors
// as small additive scoring hints. Hints never veto a routing decision;
// a processor with no insight simply gets no adjustment.
package insights

import (
	"context"
	"time"
)

// Adjustment is the scoring hint derived from market intelligence for one
// processor. All fields are additive nudges, not hard signals.
type Adjustment struct {
	FeeAdjustment    float64  `json:"fee_adjustment"`
	ReliabilityBonus float64  `json:"reliability_bonus"`
	PriorityBoost    float64  `json:"priority_boost"`
	Reasons          []string `json:"reasons,omitempty"`
}

// Score collapses the adjustment into a single additive routing delta.
// Fees count against the processor.
func (a Adjustment) Score() float64 {
	return a.ReliabilityBonus + a.PriorityBoost - a.FeeAdjustment
}

// IsZero reports whether the adjustment carries no signal.
func (a Adjustment) IsZero() bool {
	return a.FeeAdjustment == 0 && a.ReliabilityBonus == 0 && a.PriorityBoost == 0
}

// Source fetches fresh adjustments for a set of processors.
type Source interface {
	Fetch(ctx context.Context, processorIDs []string) (map[string]Adjustment, error)
}

// Insight is a persisted piece of market intelligence.
type Insight struct {
	ProcessorID string    `json:"processor_id"`
	Type        string    `json:"insight_type"`
	Content     string    `json:"content"`
	ImpactScore float64   `json:"impact_score"`
	SourceURL   string    `json:"source_url,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store persists adjustments across restarts.
type Store interface {
	Save(ctx context.Context, processorID string, adj Adjustment, fetchedAt, expiresAt time.Time) error
	LoadActive(ctx context.Context, now time.Time) (map[string]Adjustment, error)
}

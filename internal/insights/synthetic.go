package insights

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/mbd888/payrails/internal/metrics"
)

// Synthetic generates plausible, deterministic adjustments when no live
// intelligence source is configured. The same processor id always maps to
// the same adjustment, which keeps demo routing reproducible.
type Synthetic struct{}

// NewSynthetic returns the synthetic intelligence source.
func NewSynthetic() *Synthetic { return &Synthetic{} }

// Fetch derives a stable adjustment per processor from a hash of its id.
func (s *Synthetic) Fetch(_ context.Context, processorIDs []string) (map[string]Adjustment, error) {
	out := make(map[string]Adjustment, len(processorIDs))
	for _, id := range processorIDs {
		out[id] = syntheticAdjustment(id)
		metrics.InsightsLookupsTotal.WithLabelValues("synthetic").Inc()
	}
	return out, nil
}

func syntheticAdjustment(id string) Adjustment {
	h := fnv.New32a()
	h.Write([]byte(id))
	seed := h.Sum32()

	// Spread processors across small bonus/penalty bands. Magnitudes stay
	// well below the capability and health terms in routing scores.
	fee := float64(seed%5) * 0.5
	reliability := float64((seed>>3)%4) * 0.75
	priority := float64((seed>>6)%3) * 1.0

	return Adjustment{
		FeeAdjustment:    fee,
		ReliabilityBonus: reliability,
		PriorityBoost:    priority,
		Reasons: []string{
			fmt.Sprintf("synthetic market profile for %s", id),
		},
	}
}

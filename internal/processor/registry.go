package processor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/payrails/internal/metrics"
	"github.com/mbd888/payrails/internal/risk"
)

// Alternatives are independent businesses with no exposure to the primary
// account's history, so they carry small assumed rates instead of measured
// ones. Their standing improves slightly when the primary is in trouble
// because they are about to receive its volume.
const (
	altFreezeRiskDefault       = 0.15
	altFreezeRiskPrimaryFrozen = 0.10
	altFreezeRiskPrimaryWarn   = 0.20

	altChargebackRate = 0.005
	altRefundRate     = 0.03
	altVolumeSpike    = 1.0
)

// Registry holds the processor capability table and derives per-processor
// health from the primary account's freeze risk assessment.
type Registry struct {
	primary string
	order   []string
	caps    map[string]Capability
	logger  *slog.Logger
	now     func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry validates the capability table and returns a registry with
// primary as the merchant's current primary processor.
func NewRegistry(primary string, caps []Capability, opts ...RegistryOption) (*Registry, error) {
	if len(caps) == 0 {
		return nil, fmt.Errorf("registry: empty capability table")
	}

	r := &Registry{
		primary: primary,
		caps:    make(map[string]Capability, len(caps)),
		order:   make([]string, 0, len(caps)),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, c := range caps {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if _, dup := r.caps[c.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate processor %s", c.ID)
		}
		r.caps[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	if _, ok := r.caps[primary]; !ok {
		return nil, fmt.Errorf("registry: primary %s: %w", primary, ErrUnknownProcessor)
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Primary returns the primary processor id.
func (r *Registry) Primary() string { return r.primary }

// IDs returns processor ids in table order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Has reports whether the registry knows the processor.
func (r *Registry) Has(id string) bool {
	_, ok := r.caps[id]
	return ok
}

// Capability returns the capability entry for id.
func (r *Registry) Capability(id string) (Capability, error) {
	c, ok := r.caps[id]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %s", ErrUnknownProcessor, id)
	}
	return c, nil
}

// Capabilities returns the capability table in construction order.
func (r *Registry) Capabilities() []Capability {
	out := make([]Capability, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.caps[id])
	}
	return out
}

// AssessHealth derives health for every registered processor from the
// primary account's freeze risk assessment. A nil analysis means the
// assessment was unavailable; the primary is reported unavailable with a
// neutral freeze risk rather than assumed frozen.
func (r *Registry) AssessHealth(analysis *risk.Analysis) map[string]*Health {
	now := r.now().UTC()
	healths := make(map[string]*Health, len(r.order))

	primary := r.assessPrimary(analysis, now)
	healths[r.primary] = primary

	for _, id := range r.order {
		if id == r.primary {
			continue
		}
		healths[id] = r.assessAlternative(id, primary.Status, now)
	}

	for id, h := range healths {
		metrics.ProcessorFreezeRisk.WithLabelValues(id).Set(h.FreezeRisk)
		frozen := 0.0
		if h.Frozen() {
			frozen = 1.0
		}
		metrics.ProcessorFrozen.WithLabelValues(id).Set(frozen)
	}

	if primary.Status != StatusHealthy {
		r.logger.Warn("primary processor degraded",
			"processor", r.primary,
			"status", primary.Status,
			"freeze_risk", primary.FreezeRisk,
			"reasons", primary.FreezeReasons,
		)
	}

	return healths
}

func (r *Registry) assessPrimary(analysis *risk.Analysis, now time.Time) *Health {
	if analysis == nil {
		return &Health{
			ProcessorID:       r.primary,
			Status:            StatusUnavailable,
			FreezeRisk:        altFreezeRiskDefault,
			FreezeReasons:     []string{"risk assessment unavailable"},
			RecommendedAction: "Proceeding with neutral assumptions; investigate ledger availability",
			LastUpdate:        now,
		}
	}

	var status Status
	switch {
	case analysis.OverallRisk == risk.LevelCritical:
		status = StatusFrozen
	case analysis.OverallRisk == risk.LevelHigh:
		status = StatusWarning
	default:
		status = StatusHealthy
	}

	var reasons []string
	for _, f := range analysis.AccountFactors {
		reasons = append(reasons, f.Description)
	}

	return &Health{
		ProcessorID:       r.primary,
		Status:            status,
		FreezeRisk:        analysis.FreezeProbability,
		ChargebackRate:    analysis.Metrics.ChargebackRate,
		RefundRate:        analysis.Metrics.RefundRate,
		VolumeSpike:       analysis.Metrics.VolumeSpike,
		FreezeReasons:     reasons,
		RecommendedAction: recommendedAction(status),
		LastUpdate:        now,
	}
}

func (r *Registry) assessAlternative(id string, primaryStatus Status, now time.Time) *Health {
	freezeRisk := altFreezeRiskDefault
	action := "Available as alternative"
	switch primaryStatus {
	case StatusFrozen:
		freezeRisk = altFreezeRiskPrimaryFrozen
		action = "Primary option while the primary processor is frozen"
	case StatusWarning:
		freezeRisk = altFreezeRiskPrimaryWarn
		action = "Backup ready; primary processor is degraded"
	}

	return &Health{
		ProcessorID:       id,
		Status:            StatusHealthy,
		FreezeRisk:        freezeRisk,
		ChargebackRate:    altChargebackRate,
		RefundRate:        altRefundRate,
		VolumeSpike:       altVolumeSpike,
		RecommendedAction: action,
		LastUpdate:        now,
	}
}

func recommendedAction(status Status) string {
	switch status {
	case StatusFrozen:
		return "Route new volume away from this processor immediately"
	case StatusWarning:
		return "Monitor closely and prepare alternative routing"
	default:
		return "Continue normal operation"
	}
}

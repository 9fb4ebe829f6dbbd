// Package processor tracks payment processor capabilities and health.
//
// Capabilities are static facts about each processor: transaction limits,
// the business categories it serves well, and how resistant it is to
// freezing merchant accounts. Health is derived per request from the
// current freeze risk assessment of the primary processor; alternatives
// are independent businesses and do not inherit the primary's trouble.
package processor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownProcessor is returned for processor ids not in the registry.
	ErrUnknownProcessor = errors.New("unknown processor")
)

// Status is a processor health status.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusWarning     Status = "warning"
	StatusFrozen      Status = "frozen"
	StatusUnavailable Status = "unavailable"
)

// Capability describes what a processor can handle.
type Capability struct {
	ID                 string   `json:"id"`
	MaxAmount          int64    `json:"max_amount_cents"`
	BestFor            []string `json:"best_for"`
	GeographicStrength []string `json:"geographic_strength"`
	FreezeResistance   float64  `json:"freeze_resistance"`
}

// Validate checks the capability for construction-time errors.
func (c Capability) Validate() error {
	if c.ID == "" {
		return errors.New("capability: empty processor id")
	}
	if c.MaxAmount <= 0 {
		return fmt.Errorf("capability %s: max amount must be positive", c.ID)
	}
	if c.FreezeResistance < 0 || c.FreezeResistance > 1 {
		return fmt.Errorf("capability %s: freeze resistance %f out of [0,1]", c.ID, c.FreezeResistance)
	}
	return nil
}

// Supports reports whether the processor lists the category as a strength.
func (c Capability) Supports(category string) bool {
	for _, b := range c.BestFor {
		if b == category {
			return true
		}
	}
	return false
}

// Health is a point-in-time health assessment for one processor.
type Health struct {
	ProcessorID       string    `json:"processor_id"`
	Status            Status    `json:"status"`
	FreezeRisk        float64   `json:"freeze_risk"`
	ChargebackRate    float64   `json:"chargeback_rate"`
	RefundRate        float64   `json:"refund_rate"`
	VolumeSpike       float64   `json:"volume_spike"`
	FreezeReasons     []string  `json:"freeze_reasons,omitempty"`
	RecommendedAction string    `json:"recommended_action"`
	LastUpdate        time.Time `json:"last_update"`
}

// Frozen reports whether the processor should not receive new volume.
func (h *Health) Frozen() bool {
	return h.Status == StatusFrozen
}

// DefaultCapabilities returns the built-in processor capability table.
// Amounts are minor units (cents).
func DefaultCapabilities() []Capability {
	return []Capability{
		{
			ID:                 "stripe",
			MaxAmount:          999999,
			BestFor:            []string{"b2b", "subscription", "saas"},
			GeographicStrength: []string{"US", "EU", "UK"},
			FreezeResistance:   0.3,
		},
		{
			ID:                 "paypal",
			MaxAmount:          100000,
			BestFor:            []string{"consumer", "marketplace", "ecommerce"},
			GeographicStrength: []string{"US", "EU", "global"},
			FreezeResistance:   0.6,
		},
		{
			ID:                 "square",
			MaxAmount:          50000,
			BestFor:            []string{"retail", "pos", "small_business"},
			GeographicStrength: []string{"US", "CA"},
			FreezeResistance:   0.7,
		},
		{
			ID:                 "visa",
			MaxAmount:          2000000,
			BestFor:            []string{"enterprise", "high_value", "international"},
			GeographicStrength: []string{"global"},
			FreezeResistance:   0.9,
		},
		{
			ID:                 "adyen",
			MaxAmount:          1000000,
			BestFor:            []string{"international", "enterprise", "high_volume"},
			GeographicStrength: []string{"EU", "APAC", "global"},
			FreezeResistance:   0.8,
		},
		{
			ID:                 "crossmint",
			MaxAmount:          500000,
			BestFor:            []string{"crypto", "web3", "defi", "nft", "international"},
			GeographicStrength: []string{"global"},
			FreezeResistance:   0.95,
		},
	}
}

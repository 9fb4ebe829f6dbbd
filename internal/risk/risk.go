// Package risk assesses account freeze risk from recent payment activity.
//
// The analyzer reads a recent transaction window plus a historical baseline
// from the ledger and detects the patterns processor risk systems act on:
// volume spikes, refund surges, chargeback rates, and velocity anomalies.
// Account-level patterns drive freeze risk; individual transaction
// characteristics are tracked separately and never conflated with them.
package risk

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when the ledger cannot serve the analysis window.
var ErrUnavailable = errors.New("risk analysis unavailable")

// Level is a risk severity level.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// severityWeights orders levels for aggregation. Each step doubles.
var severityWeights = map[Level]float64{
	LevelLow:      1,
	LevelMedium:   2,
	LevelHigh:     4,
	LevelCritical: 8,
}

// Weight returns the aggregation weight for the level.
func (l Level) Weight() float64 {
	return severityWeights[l]
}

// AtLeast reports whether l is at least as severe as other.
func (l Level) AtLeast(other Level) bool {
	return severityWeights[l] >= severityWeights[other]
}

// Pattern identifies a detected risk pattern.
type Pattern string

const (
	// Account-level patterns (volume-based; these drive freezes)
	PatternVolumeSpike       Pattern = "volume_spike"
	PatternRefundSurge       Pattern = "refund_surge"
	PatternChargebackPattern Pattern = "chargeback_pattern"
	PatternVelocityAnomaly   Pattern = "velocity_anomaly"

	// Transaction-level patterns (individual characteristics)
	PatternHighValueTransaction  Pattern = "high_value_transaction"
	PatternSuspiciousDescription Pattern = "suspicious_description"
)

// Scope separates account-level volume patterns from individual
// transaction characteristics.
type Scope string

const (
	ScopeAccount     Scope = "account_level"
	ScopeTransaction Scope = "transaction_level"
)

// Factor is a single detected risk pattern.
type Factor struct {
	Pattern              Pattern  `json:"pattern"`
	Scope                Scope    `json:"scope"`
	Severity             Level    `json:"severity"`
	Confidence           float64  `json:"confidence"`
	FreezeProbability    float64  `json:"freeze_probability"`
	Description          string   `json:"description"`
	Timeline             string   `json:"timeline"`
	Mitigations          []string `json:"mitigations,omitempty"`
	AffectedTransactions int      `json:"affected_transactions"`
}

// VolumeMetrics summarizes the analyzed window.
type VolumeMetrics struct {
	ChargeCount     int     `json:"charge_count"`
	RefundCount     int     `json:"refund_count"`
	AdjustmentCount int     `json:"adjustment_count"`
	TotalVolume     int64   `json:"total_volume_cents"`
	AvgChargeAmount float64 `json:"avg_charge_cents"`
	RefundRate      float64 `json:"refund_rate"`
	ChargebackRate  float64 `json:"chargeback_rate"`
	BaselineDaily   float64 `json:"baseline_daily_rate"`
	VolumeSpike     float64 `json:"volume_spike_multiplier"`
}

// Analysis is the result of a full freeze risk assessment.
type Analysis struct {
	OverallRisk        Level         `json:"overall_risk"`
	FreezeProbability  float64       `json:"freeze_probability"`
	Factors            []*Factor     `json:"factors"`
	AccountFactors     []*Factor     `json:"account_factors"`
	TransactionFactors []*Factor     `json:"transaction_factors"`
	Recommendations    []string      `json:"recommendations"`
	AnalyzedAt         time.Time     `json:"analyzed_at"`
	WindowHours        int           `json:"window_hours"`
	TransactionCount   int           `json:"transaction_count"`
	Metrics            VolumeMetrics `json:"metrics"`
}

// Thresholds are the processor tolerance limits the detectors check against.
// Defaults mirror Stripe's published and observed limits.
type Thresholds struct {
	RefundRateWarning     float64 // warn at this refund rate
	RefundRateFreeze      float64 // freeze territory
	ChargebackRateFreeze  float64 // card networks tolerate ~1%
	VolumeSpikeMultiplier float64 // multiple of baseline daily volume
	VolumeSpikeSevere     float64 // multiplier that upgrades severity
	VelocityPerHour       int     // transactions in a single hour
}

// DefaultThresholds returns the standard processor tolerance limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RefundRateWarning:     0.05,
		RefundRateFreeze:      0.10,
		ChargebackRateFreeze:  0.01,
		VolumeSpikeMultiplier: 10.0,
		VolumeSpikeSevere:     15.0,
		VelocityPerHour:       100,
	}
}

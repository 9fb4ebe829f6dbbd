package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/payrails/internal/ledger"
	"github.com/mbd888/payrails/internal/metrics"
	"github.com/mbd888/payrails/internal/traces"
)

// Analyzer runs freeze risk assessments over ledger activity.
type Analyzer struct {
	source              ledger.Reader
	thresholds          Thresholds
	window              time.Duration
	baselineDays        int
	enterpriseThreshold int64
	logger              *slog.Logger
	now                 func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithThresholds overrides the processor tolerance limits.
func WithThresholds(th Thresholds) Option {
	return func(a *Analyzer) { a.thresholds = th }
}

// WithWindow sets the analysis window.
func WithWindow(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithBaselineDays sets the historical window for the baseline daily rate.
func WithBaselineDays(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.baselineDays = days
		}
	}
}

// WithEnterpriseThreshold sets the minor-unit amount at which an individual
// charge counts as high-value.
func WithEnterpriseThreshold(cents int64) Option {
	return func(a *Analyzer) {
		if cents > 0 {
			a.enterpriseThreshold = cents
		}
	}
}

// WithLogger sets the analyzer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an analyzer reading from source.
func NewAnalyzer(source ledger.Reader, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:              source,
		thresholds:          DefaultThresholds(),
		window:              24 * time.Hour,
		baselineDays:        30,
		enterpriseThreshold: 100000, // $1,000
		logger:              slog.Default(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs a full freeze risk assessment over the configured window.
func (a *Analyzer) Analyze(ctx context.Context) (*Analysis, error) {
	ctx, span := traces.StartSpan(ctx, "risk.Analyze")
	defer span.End()

	timer := prometheus.NewTimer(metrics.RiskAssessmentDuration)
	defer timer.ObserveDuration()

	now := a.now().UTC()
	windowHours := int(a.window / time.Hour)

	txns, err := a.source.FetchSince(ctx, now.Add(-a.window))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch window: %v", ErrUnavailable, err)
	}

	if len(txns) == 0 {
		analysis := emptyAnalysis(now, windowHours)
		metrics.RiskAssessmentsTotal.WithLabelValues(string(analysis.OverallRisk)).Inc()
		return analysis, nil
	}

	baseline, err := a.source.BaselineDailyRate(ctx, a.baselineDays, now)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch baseline: %v", ErrUnavailable, err)
	}

	var charges, refunds, adjustments []*ledger.Transaction
	for _, txn := range txns {
		switch txn.Type {
		case ledger.TypeCharge:
			charges = append(charges, txn)
		case ledger.TypeRefund:
			refunds = append(refunds, txn)
		case ledger.TypeAdjustment:
			adjustments = append(adjustments, txn)
		}
	}

	var factors []*Factor
	if f := detectVolumeSpike(charges, baseline, a.thresholds); f != nil {
		factors = append(factors, f)
	}
	if f := detectRefundSurge(len(charges), len(refunds), a.thresholds); f != nil {
		factors = append(factors, f)
	}
	if f := detectChargebacks(len(charges), len(adjustments), a.thresholds); f != nil {
		factors = append(factors, f)
	}
	if f := detectVelocityAnomaly(txns, a.thresholds); f != nil {
		factors = append(factors, f)
	}
	factors = append(factors, scanTransactions(charges, a.enterpriseThreshold)...)

	var accountFactors, transactionFactors []*Factor
	for _, f := range factors {
		switch f.Scope {
		case ScopeAccount:
			accountFactors = append(accountFactors, f)
		case ScopeTransaction:
			transactionFactors = append(transactionFactors, f)
		}
		metrics.RiskFactorsTotal.WithLabelValues(string(f.Pattern), string(f.Severity)).Inc()
	}

	overall, freezeProb := aggregate(factors)

	analysis := &Analysis{
		OverallRisk:        overall,
		FreezeProbability:  freezeProb,
		Factors:            factors,
		AccountFactors:     accountFactors,
		TransactionFactors: transactionFactors,
		Recommendations:    buildRecommendations(factors, overall),
		AnalyzedAt:         now,
		WindowHours:        windowHours,
		TransactionCount:   len(txns),
		Metrics:            computeVolumeMetrics(charges, refunds, adjustments, baseline),
	}

	metrics.RiskAssessmentsTotal.WithLabelValues(string(overall)).Inc()
	span.SetAttributes(traces.RiskLevel(string(overall)))

	a.logger.Info("risk assessment complete",
		"overall_risk", overall,
		"freeze_probability", freezeProb,
		"factors", len(factors),
		"transactions", len(txns),
		"window_hours", windowHours,
	)

	return analysis, nil
}

func computeVolumeMetrics(charges, refunds, adjustments []*ledger.Transaction, baseline float64) VolumeMetrics {
	m := VolumeMetrics{
		ChargeCount:     len(charges),
		RefundCount:     len(refunds),
		AdjustmentCount: len(adjustments),
		BaselineDaily:   baseline,
		VolumeSpike:     volumeMultiplier(charges, baseline),
	}
	for _, txn := range charges {
		m.TotalVolume += txn.Amount
	}
	if len(charges) > 0 {
		m.AvgChargeAmount = float64(m.TotalVolume) / float64(len(charges))
		m.RefundRate = float64(len(refunds)) / float64(len(charges))
		m.ChargebackRate = float64(len(adjustments)) / float64(len(charges))
	}
	return m
}

func emptyAnalysis(now time.Time, windowHours int) *Analysis {
	return &Analysis{
		OverallRisk:       LevelLow,
		FreezeProbability: 0.0,
		Recommendations:   []string{"No transactions found in analysis window"},
		AnalyzedAt:        now,
		WindowHours:       windowHours,
	}
}

package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/payrails/internal/ledger"
)

// Detectors take the transaction window apart one pattern at a time.
// Each returns nil when the pattern is absent.

// detectVolumeSpike compares the window's daily charge rate against the
// historical baseline. Processor automation flags accounts whose volume
// jumps an order of magnitude.
func detectVolumeSpike(charges []*ledger.Transaction, baselineDaily float64, th Thresholds) *Factor {
	if len(charges) == 0 {
		return nil
	}

	multiplier := volumeMultiplier(charges, baselineDaily)
	if multiplier < th.VolumeSpikeMultiplier {
		return nil
	}

	severity := LevelMedium
	if multiplier >= th.VolumeSpikeSevere {
		severity = LevelHigh
	}

	return &Factor{
		Pattern:           PatternVolumeSpike,
		Scope:             ScopeAccount,
		Severity:          severity,
		Confidence:        min(0.95, multiplier/20),
		FreezeProbability: min(0.85, multiplier/20),
		Description:       fmt.Sprintf("volume spike: %.1fx normal daily volume", multiplier),
		Timeline:          "24-48 hours",
		Mitigations: []string{
			"Contact the processor proactively with business justification",
			"Prepare transaction documentation and customer communications",
			"Spread future volume increases over longer periods",
		},
		AffectedTransactions: len(charges),
	}
}

// volumeMultiplier projects the window's charges to a daily rate and
// compares it against the historical baseline. Charges are spread over the
// clock hours they actually occupy, so tight clustering reads as a spike.
func volumeMultiplier(charges []*ledger.Transaction, baselineDaily float64) float64 {
	if len(charges) == 0 {
		return 0
	}
	if baselineDaily <= 0 {
		// New accounts have no baseline; assume a modest one rather
		// than flagging every first-day merchant.
		baselineDaily = 10
	}

	hourSet := make(map[int]struct{})
	for _, txn := range charges {
		hourSet[txn.Created.Hour()] = struct{}{}
	}
	hoursAnalyzed := len(hourSet)
	if hoursAnalyzed < 1 {
		hoursAnalyzed = 1
	}
	currentDailyRate := float64(len(charges)) / float64(hoursAnalyzed) * 24

	return currentDailyRate / baselineDaily
}

// detectRefundSurge checks the refund-to-charge ratio against the warning
// and freeze thresholds.
func detectRefundSurge(chargeCount, refundCount int, th Thresholds) *Factor {
	if chargeCount == 0 {
		return nil
	}

	rate := float64(refundCount) / float64(chargeCount)
	if rate < th.RefundRateWarning {
		return nil
	}

	severity := LevelHigh
	timeline := "24-72 hours"
	if rate >= th.RefundRateFreeze {
		severity = LevelCritical
		timeline = "immediate"
	}

	return &Factor{
		Pattern:           PatternRefundSurge,
		Scope:             ScopeAccount,
		Severity:          severity,
		Confidence:        0.9,
		FreezeProbability: min(0.75, rate*5),
		Description:       fmt.Sprintf("refund surge: %.1f%% of charges refunded (warning threshold %.1f%%)", rate*100, th.RefundRateWarning*100),
		Timeline:          timeline,
		Mitigations: []string{
			"Investigate root cause of refund surge",
			"Improve customer service and product quality",
			"Communicate proactively with customers to prevent additional refunds",
		},
		AffectedTransactions: refundCount,
	}
}

// detectChargebacks checks the adjustment-to-charge ratio. Card networks
// tolerate roughly 1% before the account is frozen with a fund hold.
func detectChargebacks(chargeCount, adjustmentCount int, th Thresholds) *Factor {
	if chargeCount == 0 {
		return nil
	}

	rate := float64(adjustmentCount) / float64(chargeCount)
	if rate < th.ChargebackRateFreeze {
		return nil
	}

	return &Factor{
		Pattern:           PatternChargebackPattern,
		Scope:             ScopeAccount,
		Severity:          LevelCritical,
		Confidence:        0.95,
		FreezeProbability: 0.90,
		Description:       fmt.Sprintf("chargeback rate %.1f%% exceeds %.1f%% freeze threshold", rate*100, th.ChargebackRateFreeze*100),
		Timeline:          "immediate",
		Mitigations: []string{
			"Contact the processor immediately",
			"Prepare comprehensive dispute documentation",
			"Implement immediate fraud prevention measures",
			"Consider pausing high-risk transactions",
		},
		AffectedTransactions: adjustmentCount,
	}
}

// detectVelocityAnomaly buckets all activity by clock hour and flags the
// account when any single hour exceeds the velocity threshold.
func detectVelocityAnomaly(txns []*ledger.Transaction, th Thresholds) *Factor {
	if len(txns) == 0 {
		return nil
	}

	hourly := make(map[time.Time]int)
	for _, txn := range txns {
		hourly[txn.Created.Truncate(time.Hour)]++
	}

	maxHourly := 0
	for _, count := range hourly {
		if count > maxHourly {
			maxHourly = count
		}
	}
	if maxHourly < th.VelocityPerHour {
		return nil
	}

	return &Factor{
		Pattern:           PatternVelocityAnomaly,
		Scope:             ScopeAccount,
		Severity:          LevelHigh,
		Confidence:        0.8,
		FreezeProbability: 0.6,
		Description:       fmt.Sprintf("velocity anomaly: %d transactions in a single hour", maxHourly),
		Timeline:          "24-48 hours",
		Mitigations: []string{
			"Review transaction clustering patterns",
			"Implement rate limiting if appropriate",
			"Verify transactions are legitimate business activity",
		},
		AffectedTransactions: maxHourly,
	}
}

// suspiciousKeywords in charge descriptions attract manual review.
var suspiciousKeywords = []string{"test", "fake", "fraud", "chargeback", "dispute"}

// scanTransactions inspects individual charges for characteristics that
// warrant attention. These are transaction-level observations: a $1,000
// charge is not an account freeze signal, and the aggregator discounts
// these accordingly.
func scanTransactions(charges []*ledger.Transaction, enterpriseThreshold int64) []*Factor {
	var factors []*Factor

	highValue := 0
	for _, txn := range charges {
		if txn.Amount >= enterpriseThreshold {
			highValue++
		}
	}
	if highValue > 0 {
		factors = append(factors, &Factor{
			Pattern:           PatternHighValueTransaction,
			Scope:             ScopeTransaction,
			Severity:          LevelLow,
			Confidence:        0.6,
			FreezeProbability: 0.1,
			Description:       fmt.Sprintf("%d high-value charges at or above %d cents", highValue, enterpriseThreshold),
			Timeline:          "1-2 weeks",
			Mitigations: []string{
				"Maintain detailed documentation for high-value transactions",
				"Verify customer legitimacy for large amounts",
			},
			AffectedTransactions: highValue,
		})
	}

	suspicious := 0
	for _, txn := range charges {
		desc := strings.ToLower(strings.TrimSpace(txn.Description))
		if desc == "" {
			continue
		}
		for _, kw := range suspiciousKeywords {
			if strings.Contains(desc, kw) {
				suspicious++
				break
			}
		}
	}
	if suspicious > 0 {
		factors = append(factors, &Factor{
			Pattern:           PatternSuspiciousDescription,
			Scope:             ScopeTransaction,
			Severity:          LevelMedium,
			Confidence:        0.8,
			FreezeProbability: 0.3,
			Description:       fmt.Sprintf("%d charges with suspicious descriptions", suspicious),
			Timeline:          "24-48 hours",
			Mitigations: []string{
				"Review flagged transaction descriptions for legitimacy",
				"Use professional descriptions on future charges",
			},
			AffectedTransactions: suspicious,
		})
	}

	return factors
}

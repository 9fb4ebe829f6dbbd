package risk

// accountWeightMultiplier makes account-level patterns dominate the
// overall score. Freezes come from volume behavior, not individual charges.
const accountWeightMultiplier = 5

// transactionFreezeDiscount caps how much a transaction-level pattern can
// contribute to the freeze probability.
const transactionFreezeDiscount = 0.2

// aggregate combines detected factors into an overall risk level and
// freeze probability. A critical account-level factor forces the overall
// level to critical regardless of everything else.
func aggregate(factors []*Factor) (Level, float64) {
	if len(factors) == 0 {
		return LevelLow, 0.05
	}

	var accountWeight, transactionWeight float64
	var accountFreeze, transactionFreeze float64
	criticalAccount := false

	for _, f := range factors {
		weighted := f.Severity.Weight() * f.Confidence
		switch f.Scope {
		case ScopeAccount:
			accountWeight += weighted * accountWeightMultiplier
			if f.FreezeProbability > accountFreeze {
				accountFreeze = f.FreezeProbability
			}
			if f.Severity == LevelCritical {
				criticalAccount = true
			}
		case ScopeTransaction:
			transactionWeight += weighted
			if f.FreezeProbability > transactionFreeze {
				transactionFreeze = f.FreezeProbability
			}
		}
	}

	freezeProb := max(accountFreeze, transactionFreeze*transactionFreezeDiscount)

	var overall Level
	switch {
	case criticalAccount:
		overall = LevelCritical
	case accountWeight >= 16:
		overall = LevelHigh
	case accountWeight+transactionWeight >= 8:
		overall = LevelMedium
	default:
		overall = LevelLow
	}

	return overall, freezeProb
}

// buildRecommendations collects factor mitigations behind level-wide
// guidance, deduplicated in first-seen order.
func buildRecommendations(factors []*Factor, overall Level) []string {
	var recs []string

	switch overall {
	case LevelCritical:
		recs = append(recs,
			"Immediate action required",
			"Contact processor support immediately to explain activity",
			"Prepare comprehensive documentation and business justification",
			"Consider temporarily reducing transaction volume",
		)
	case LevelHigh:
		recs = append(recs,
			"Proactive measures recommended",
			"Contact the processor proactively to discuss patterns",
			"Implement additional fraud prevention measures",
			"Monitor metrics closely for further changes",
		)
	}

	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		seen[r] = struct{}{}
	}
	for _, f := range factors {
		for _, m := range f.Mitigations {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			recs = append(recs, m)
		}
	}

	return recs
}

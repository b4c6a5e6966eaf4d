package analysis

// Warning notes emitted by CheckPlanConsistency. These are advisory
// strings surfaced verbatim to the end user, never errors.
const (
	WarnBuyStopAboveEntry   = "warning: stop-loss is at or above entry; place it just below entry or under the nearest support"
	WarnBuyTakeBelowEntry   = "warning: take-profit targets include a value at or below entry"
	WarnBuyStopAboveSupport = "caution: stop-loss sits above the nearest support; a stop-hunt wick could take it out"

	WarnSellStopBelowEntry      = "warning: stop-loss is at or below entry; place it just above entry or over the nearest resistance"
	WarnSellTakeAboveEntry      = "warning: take-profit targets include a value at or above entry"
	WarnSellStopBelowResistance = "caution: stop-loss sits below the nearest resistance; a stop-hunt wick could take it out"
)

// CheckPlanConsistency cross-validates entry/stop/target against the
// extracted structural levels and appends findings to plan.Notes.
// Numeric fields are never touched, hold plans are never checked, and
// duplicate notes are suppressed.
func CheckPlanConsistency(plan *Plan, market Market) *Plan {
	if plan == nil {
		return nil
	}
	entry := plan.Levels.Entry
	sl := plan.Levels.SL
	tps := plan.Levels.TP

	nearestSupport, hasSupport := nearestBelow(plan.Levels.SR.Support, entry)
	nearestResistance, hasResistance := nearestAbove(plan.Levels.SR.Resistance, entry)

	var findings []string
	switch plan.Decision {
	case DecisionBuy:
		if entry != nil && sl != nil && *sl >= *entry {
			findings = append(findings, WarnBuyStopAboveEntry)
		}
		if entry != nil && anyAtOrBelow(tps, *entry) {
			findings = append(findings, WarnBuyTakeBelowEntry)
		}
		if hasSupport && sl != nil && *sl > nearestSupport {
			findings = append(findings, WarnBuyStopAboveSupport)
		}
	case DecisionSell:
		if entry != nil && sl != nil && *sl <= *entry {
			findings = append(findings, WarnSellStopBelowEntry)
		}
		if entry != nil && anyAtOrAbove(tps, *entry) {
			findings = append(findings, WarnSellTakeAboveEntry)
		}
		if hasResistance && sl != nil && *sl < nearestResistance {
			findings = append(findings, WarnSellStopBelowResistance)
		}
	}

	plan.Notes = dedupNotes(append(append([]string{}, plan.Notes...), findings...))
	return plan
}

// nearestBelow returns the greatest value <= entry, or the greatest
// value overall when entry is unset (the lists arrive ascending).
func nearestBelow(values []float64, entry *float64) (float64, bool) {
	var out float64
	found := false
	for _, v := range values {
		if entry != nil && v > *entry {
			continue
		}
		out = v
		found = true
	}
	return out, found
}

// nearestAbove returns the smallest value >= entry, or the first value
// overall when entry is unset.
func nearestAbove(values []float64, entry *float64) (float64, bool) {
	for _, v := range values {
		if entry != nil && v < *entry {
			continue
		}
		return v, true
	}
	return 0, false
}

func anyAtOrBelow(values []float64, bound float64) bool {
	for _, v := range values {
		if v <= bound {
			return true
		}
	}
	return false
}

func anyAtOrAbove(values []float64, bound float64) bool {
	for _, v := range values {
		if v >= bound {
			return true
		}
	}
	return false
}

// dedupNotes keeps the first occurrence of each note, preserving
// insertion order.
func dedupNotes(notes []string) []string {
	seen := make(map[string]struct{}, len(notes))
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ConsistencyScore grades how well the decision direction agrees with
// the order-book imbalance and pressure. Neutral prior of 0.5; hold is
// always exactly 0.5. Bonuses are additive, so the clamp matters.
func ConsistencyScore(plan *Plan) float64 {
	if plan == nil {
		return 0.5
	}
	imbalance := 0.0
	if plan.Orderbook.Imbalance != nil {
		imbalance = *plan.Orderbook.Imbalance
	}
	pressure := plan.Orderbook.Pressure
	if pressure == "" {
		pressure = PressureNeutral
	}

	score := 0.5
	switch plan.Decision {
	case DecisionBuy:
		if imbalance > 0.05 {
			score += 0.2
		}
		if pressure == PressureBid {
			score += 0.15
		}
		if imbalance < -0.05 {
			score -= 0.2
		}
	case DecisionSell:
		if imbalance < -0.05 {
			score += 0.2
		}
		if pressure == PressureAsk {
			score += 0.15
		}
		if imbalance > 0.05 {
			score -= 0.2
		}
	default:
		return 0.5
	}
	return clamp01(score)
}

// BlendConfidence folds the consistency score into the model's own
// confidence: 60% model, 40% book agreement, re-clamped.
func BlendConfidence(confidence, score float64) float64 {
	return clamp01(confidence*0.6 + score*0.4)
}

package analysis

import "sort"

// SanitizeSR cleans raw support/resistance arrays: non-finite values
// are dropped, survivors are rounded to market precision, deduplicated
// and sorted ascending. Always returns a usable (possibly empty) pair.
func SanitizeSR(raw map[string]any, market Market) SupportResistance {
	return SupportResistance{
		Support:    sanitizeLevels(coerceFloatSlice(raw["support"]), market),
		Resistance: sanitizeLevels(coerceFloatSlice(raw["resistance"]), market),
	}
}

// SanitizeLevels applies the same clean-up to an already-typed slice.
func SanitizeLevels(values []float64, market Market) []float64 {
	return sanitizeLevels(values, market)
}

func sanitizeLevels(values []float64, market Market) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		r := RoundByMarket(v, market)
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Float64s(out)
	return out
}

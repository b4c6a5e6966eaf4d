package analysis

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Loose coercion helpers for provider JSON decoded into map[string]any.
// Model output routinely mixes up strings and numbers; everything here
// degrades to a zero value instead of erroring.

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// coerceFloat reports ok only for values that resolve to a finite
// number, so callers can tell "absent or garbage" from a real zero.
func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, isFinite(x)
	case float32:
		return float64(x), isFinite(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil && isFinite(f)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}

func coerceMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func coerceSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func coerceFloatSlice(v any) []float64 {
	raw := coerceSlice(v)
	if raw == nil {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		if f, ok := coerceFloat(item); ok {
			out = append(out, f)
		}
	}
	return out
}

func coerceStringSlice(v any) []string {
	raw := coerceSlice(v)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

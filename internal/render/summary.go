// Package render formats a validated plan as a short markdown report.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"chartsight/internal/analysis"
)

// Level picks how much teaching material goes into the report.
type Level string

const (
	LevelConcise  Level = "concise"
	LevelLearning Level = "learning"
)

// Markdown renders the three-section report: current situation, the
// recommended action, and the risk plan.
func Markdown(plan *analysis.Plan, level Level) string {
	if plan == nil {
		return ""
	}
	var b strings.Builder

	b.WriteString("# Current situation\n")
	fmt.Fprintf(&b, "- Instrument: %s (market: %s / timeframe: %s)\n",
		orDash(plan.Extracted.Ticker), orDash(plan.Extracted.Market), orDash(plan.Extracted.Timeframe))
	fmt.Fprintf(&b, "- Trend structure: %s\n", orDash(strings.Join(plan.Rationale, " / ")))
	fmt.Fprintf(&b, "- Key levels: S=%s / R=%s\n",
		joinFloats(head(plan.Levels.SR.Support, 3)), joinFloats(head(plan.Levels.SR.Resistance, 3)))
	fmt.Fprintf(&b, "- Orderbook: spread=%s, imbalance=%s, pressure=%s\n",
		floatOrDash(plan.Orderbook.Spread), percentOrDash(plan.Orderbook.Imbalance), orDash(plan.Orderbook.Pressure))

	b.WriteString("\n# Recommended action (educational)\n")
	fmt.Fprintf(&b, "Conclusion: %s (%s)\n", plan.Decision, plan.Horizon)
	fmt.Fprintf(&b, "- Entry: %s\n", floatOrDash(plan.Levels.Entry))
	fmt.Fprintf(&b, "- Invalidation (stop): %s\n", floatOrDash(plan.Levels.SL))
	fmt.Fprintf(&b, "- Take-profit candidates: %s\n", joinFloats(head(plan.Levels.TP, 3)))
	b.WriteString("- Reasoning:\n")
	if len(plan.Rationale) == 0 {
		b.WriteString("  - —\n")
	}
	for _, r := range head(plan.Rationale, 5) {
		fmt.Fprintf(&b, "  - %s\n", r)
	}

	b.WriteString("\n# Risk plan\n")
	fmt.Fprintf(&b, "- Confidence: %.0f%%\n", plan.Confidence*100)
	for _, note := range plan.Notes {
		fmt.Fprintf(&b, "- %s\n", note)
	}

	if level == LevelLearning && plan.Scenarios != nil {
		b.WriteString("\n# Scenarios\n")
		writeScenario(&b, "Base", plan.Scenarios.Base)
		writeScenario(&b, "Bull", plan.Scenarios.Bull)
		writeScenario(&b, "Bear", plan.Scenarios.Bear)
	}
	return b.String()
}

func writeScenario(b *strings.Builder, name string, s *analysis.Scenario) {
	if s == nil {
		return
	}
	fmt.Fprintf(b, "- %s: %s (entry=%s, sl=%s, tp=%s)\n",
		name, orDash(s.Conditions), floatOrDash(s.Entry), floatOrDash(s.SL), joinFloats(head(s.TP, 2)))
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "—"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func percentOrDash(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func joinFloats(values []float64) string {
	if len(values) == 0 {
		return "—"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}

// Package display renders plans and metrics for the terminal and the log
// file. It never mutates what it formats.
package display

import (
	"fmt"
	"strings"

	"stagehand/internal/plan"
)

const maxInputValueLength = 100

// FormatPlan renders a plan with long input values truncated for stdout.
func FormatPlan(p plan.Plan) string {
	return formatPlanInternal(p, maxInputValueLength)
}

// FormatPlanFull renders a plan without truncation, for logs.
func FormatPlanFull(p plan.Plan) string {
	return formatPlanInternal(p, -1) // -1 => no limit
}

func formatPlanInternal(p plan.Plan, limit int) string {
	var sb strings.Builder
	sb.WriteString("Proposed execution plan:\n")
	sb.WriteString("--------------------------------------------------\n")

	for i, stage := range p {
		sb.WriteString(fmt.Sprintf("Stage %d:\n", i+1))
		for _, step := range stage {
			sb.WriteString(fmt.Sprintf("  - Step: %s (role=%s, tool=%s)\n", step.StepID, step.Role, step.Tool))
			if step.Narrative != "" {
				sb.WriteString(fmt.Sprintf("    %s\n", formatValueForDisplay(step.Narrative, limit)))
			}
			if input, ok := step.Input.(map[string]any); ok && len(input) > 0 {
				sb.WriteString("    Input:\n")
				for key, val := range input {
					sb.WriteString(fmt.Sprintf("      %s: %s\n", key, formatValueForDisplay(val, limit)))
				}
			}
		}
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// Limit a value's stdout length (limit < 0 means no limit).
func formatValueForDisplay(value any, limit int) string {
	s := fmt.Sprintf("%v", value)
	s = strings.ReplaceAll(s, "\n", "\\n")
	if limit >= 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

package display

import (
	"fmt"
	"strings"

	"stagehand/internal/metrics"
)

func FormatRunMetrics(rm *metrics.RunMetrics) string {
	if rm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Execution metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v)\n", rm.DurationMs, rm.Succeeded))
	for _, s := range rm.Stages {
		sb.WriteString(fmt.Sprintf("  Stage %d: %d ms\n", s.Stage, s.DurationMs))
		for _, st := range s.Steps {
			status := "ok"
			if !st.Success {
				status = "err"
			}
			sb.WriteString(fmt.Sprintf("    - %-16s %-28s %5d ms  [%s]\n",
				st.StepID, "("+st.Role+"/"+st.Tool+")", st.DurationMs, status))
		}
	}
	return sb.String()
}

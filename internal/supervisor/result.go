package supervisor

import "stagehand/internal/metrics"

// MissionResult is what the CLI receives when a mission settles.
type MissionResult struct {
	MissionID              string              `json:"mission_id"`
	Goal                   string              `json:"goal"`
	State                  string              `json:"state"`
	FinalAnswer            any                 `json:"final_answer,omitempty"`
	FinalAnswerSynthesized bool                `json:"final_answer_synthesized"`
	Error                  string              `json:"error,omitempty"`
	Attempts               int                 `json:"attempts"`
	KeyFindings            []string            `json:"key_findings,omitempty"`
	Metrics                *metrics.RunMetrics `json:"metrics,omitempty"`
}

package metrics

import "time"

type StepMetrics struct {
	StepID     string    `json:"stepId"`
	Role       string    `json:"role"`
	Tool       string    `json:"tool"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Err        string    `json:"err,omitempty"`
}

type StageMetrics struct {
	Stage      int           `json:"stage"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	DurationMs int64         `json:"duration_ms"`
	Steps      []StepMetrics `json:"steps"`
}

type RunMetrics struct {
	ParentTaskID string         `json:"parent_task_id"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	DurationMs   int64          `json:"duration_ms"`
	Succeeded    bool           `json:"succeeded"`
	Stages       []StageMetrics `json:"stages"`
}

// Compute derived fields for a stage.
func (s *StageMetrics) Finalize() {
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

// Compute derived fields for a run.
func (r *RunMetrics) Finalize() {
	r.DurationMs = r.End.Sub(r.Start).Milliseconds()
}

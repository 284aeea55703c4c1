package engine

import (
	"fmt"

	"stagehand/internal/plan"
)

// ContextEntry is one executed step's record in the working context: its
// settled output enriched with the originating definition's metadata.
type ContextEntry struct {
	SubTaskID string          `json:"sub_task_id"`
	StepID    string          `json:"stepId"`
	Role      string          `json:"role"`
	Tool      string          `json:"tool"`
	Narrative string          `json:"narrative"`
	Output    plan.StepOutput `json:"output"`

	// isFinalAnswer mirrors the step input's is_final_answer flag for
	// local text generation; consulted only by the final-answer scan.
	isFinalAnswer bool
}

// ExecutionContext is the append-only ordered log of all step outputs
// produced so far. A replan starts a fresh context.
type ExecutionContext struct {
	Entries []ContextEntry `json:"entries"`
}

func (c *ExecutionContext) Append(entries ...ContextEntry) {
	c.Entries = append(c.Entries, entries...)
}

// Last returns the most recent entry, or nil when nothing ran yet.
func (c *ExecutionContext) Last() *ContextEntry {
	if len(c.Entries) == 0 {
		return nil
	}
	return &c.Entries[len(c.Entries)-1]
}

// LastOutputText renders the most recent step's effective output as text,
// for the reserved previous-step template placeholder.
func (c *ExecutionContext) LastOutputText() string {
	last := c.Last()
	if last == nil {
		return ""
	}
	v, ok := last.Output.Field(plan.FieldProcessedResultData)
	if !ok {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// FailureDetails captures the first failed step of a failed stage, for
// propagation to the replanning collaborator.
type FailureDetails struct {
	StepID       string `json:"stepId"`
	Narrative    string `json:"narrative"`
	Role         string `json:"role"`
	Tool         string `json:"tool"`
	ErrorDetails string `json:"error_details"`
}

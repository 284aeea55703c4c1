package plan

import (
	"regexp"
	"strings"
)

// RoleLocal marks a step that runs in-process instead of being dispatched
// to a worker role.
const RoleLocal = "local"

// Step statuses as they appear on StepOutput and ResultMessage.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Output reference fields addressable from later steps.
const (
	FieldResultData          = "result_data"
	FieldProcessedResultData = "processed_result_data"
)

// Local action names. The set is closed: the validator rejects anything
// else, and the executor's dispatch switch treats unknown names as an error.
const (
	LocalWebExplore    = "web_explore"
	LocalGenerateText  = "generate_text"
	LocalFileOperation = "file_operation"
	LocalDownloadFile  = "download_file"
)

// StepDefinition is one unit of work in a plan. Immutable after validation.
type StepDefinition struct {
	StepID    string `json:"stepId"`
	Narrative string `json:"narrative_step"`
	Role      string `json:"assigned_agent_role"`
	Tool      string `json:"tool_name"`
	Input     any    `json:"sub_task_input"`
}

// Stage is a set of steps intended to run concurrently.
type Stage []StepDefinition

// Plan is an ordered sequence of stages. Stages run strictly in sequence.
type Plan []Stage

// Steps returns the total step count across all stages.
func (p Plan) Steps() int {
	n := 0
	for _, stage := range p {
		n += len(stage)
	}
	return n
}

// StepOutput is the settled result of one step, written exactly once by the
// stage executor. ProcessedResultData falls back to ResultData when absent.
type StepOutput struct {
	Status              string `json:"status"`
	ResultData          any    `json:"result_data"`
	ProcessedResultData any    `json:"processed_result_data,omitempty"`
	ErrorDetails        string `json:"error_details,omitempty"`
}

// Field returns the named output field, applying the processed->raw
// fallback. The second return reports whether a non-nil value was found.
func (o *StepOutput) Field(name string) (any, bool) {
	if name == FieldProcessedResultData && o.ProcessedResultData != nil {
		return o.ProcessedResultData, true
	}
	if o.ResultData != nil {
		return o.ResultData, true
	}
	return nil, false
}

const refMarker = "@{outputs."

// refPattern is the full output-reference grammar. A reference is only
// valid as the entire string value; the validator and resolver share this
// definition so they can never disagree.
var refPattern = regexp.MustCompile(`^@\{outputs\.([A-Za-z0-9_\-]+)\.(result_data|processed_result_data)\}$`)

// ParseReference matches s against the full output-reference grammar,
// returning the referenced step id and field.
func ParseReference(s string) (stepID, field string, ok bool) {
	m := refPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ContainsReferenceMarker reports whether s contains the output-reference
// opening sequence anywhere. Used by the validator to flag strings that
// look like references but do not match the full grammar.
func ContainsReferenceMarker(s string) bool {
	return strings.Contains(s, refMarker)
}

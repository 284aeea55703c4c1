package supervisor

import "stagehand/internal/plan"

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Mission is one parent task: a goal, the plan currently attached to it,
// and the replanning budget.
type Mission struct {
	ID          string
	Goal        string
	State       string
	Attempt     int
	MaxAttempts int
	Plan        plan.Plan
}

// IsPlanRisky reports whether a plan contains a destructive file
// operation, which warrants user confirmation before submission.
func IsPlanRisky(p plan.Plan) bool {
	for _, stage := range p {
		for _, step := range stage {
			if step.Role != plan.RoleLocal || step.Tool != plan.LocalFileOperation {
				continue
			}
			input, ok := step.Input.(map[string]any)
			if !ok {
				continue
			}
			op, _ := input["operation"].(string)
			if _, destructive := plan.DestructiveFileOperations[op]; destructive {
				return true
			}
		}
	}
	return false
}

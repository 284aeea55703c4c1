// Package resolve substitutes symbolic output references inside a step's
// input with values taken from already-completed steps. The walk is
// immutable: maps and slices are copied, never mutated in place, so steps
// sharing template fragments stay isolated.
package resolve

import (
	"fmt"

	"stagehand/internal/plan"
)

// UnresolvedReferenceError fails a single step whose input references a
// missing, failed or empty dependency. It is never retried.
type UnresolvedReferenceError struct {
	Reference string
	StepID    string
	Reason    string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %s: %s", e.Reference, e.Reason)
}

// Options carries resolution policy.
type Options struct {
	// PermitNullResults resolves a reference to a COMPLETED step whose
	// result_data and processed_result_data are both absent to null
	// instead of failing. Off by default; the lenient behavior is an
	// explicit, named choice.
	PermitNullResults bool
}

// Resolve walks value and replaces every full-grammar output reference
// with the referenced step's output, taken from a snapshot of outputs as
// it exists at this instant. Non-reference strings and all other value
// kinds pass through structurally unchanged. Resolving a reference-free
// value returns it unchanged.
func Resolve(value any, outputs map[string]*plan.StepOutput, opts Options) (any, error) {
	switch t := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			rv, err := Resolve(v, outputs, opts)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rv, err := Resolve(v, outputs, opts)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case string:
		stepID, field, ok := plan.ParseReference(t)
		if !ok {
			return t, nil
		}
		return resolveReference(t, stepID, field, outputs, opts)
	default:
		return value, nil
	}
}

func resolveReference(ref, stepID, field string, outputs map[string]*plan.StepOutput, opts Options) (any, error) {
	output, ok := outputs[stepID]
	if !ok {
		return nil, &UnresolvedReferenceError{
			Reference: ref,
			StepID:    stepID,
			Reason:    fmt.Sprintf("step '%s' has produced no output", stepID),
		}
	}
	if output.Status != plan.StatusCompleted {
		return nil, &UnresolvedReferenceError{
			Reference: ref,
			StepID:    stepID,
			Reason:    fmt.Sprintf("step '%s' did not complete (status %s)", stepID, output.Status),
		}
	}
	v, found := output.Field(field)
	if !found {
		if opts.PermitNullResults {
			return nil, nil
		}
		return nil, &UnresolvedReferenceError{
			Reference: ref,
			StepID:    stepID,
			Reason:    fmt.Sprintf("step '%s' completed with no %s", stepID, field),
		}
	}
	return v, nil
}

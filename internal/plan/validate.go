package plan

import (
	"fmt"
)

// ValidationError rejects a candidate plan before any execution. It is
// never retried.
type ValidationError struct {
	StepID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("invalid plan: %s", e.Reason)
	}
	return fmt.Sprintf("invalid plan: step '%s': %s", e.StepID, e.Reason)
}

func invalid(stepID, format string, args ...any) error {
	return &ValidationError{StepID: stepID, Reason: fmt.Sprintf(format, args...)}
}

// Validate performs the one-shot structural and referential check on a
// candidate plan. A valid plan is immutable afterwards.
func Validate(p Plan, catalog *Catalog) error {
	if len(p) == 0 {
		return invalid("", "plan has no stages")
	}

	seenIDs := make(map[string]struct{}, p.Steps())
	for si, stage := range p {
		if len(stage) == 0 {
			return invalid("", "stage %d has no steps", si+1)
		}
		for _, step := range stage {
			if step.StepID == "" {
				return invalid("", "stage %d contains a step with an empty stepId", si+1)
			}
			if _, dup := seenIDs[step.StepID]; dup {
				return invalid(step.StepID, "duplicate stepId")
			}
			seenIDs[step.StepID] = struct{}{}
			if step.Narrative == "" {
				return invalid(step.StepID, "narrative_step is empty")
			}
			if step.Role == RoleLocal {
				if err := validateLocalStep(&step); err != nil {
					return err
				}
			} else {
				if err := validateWorkerStep(&step, catalog); err != nil {
					return err
				}
			}
			if err := checkReferenceSyntax(step.Input, step.StepID); err != nil {
				return err
			}
		}
	}

	return validateStageDependencies(p)
}

func inputObject(step *StepDefinition) (map[string]any, error) {
	if step.Input == nil {
		return nil, invalid(step.StepID, "sub_task_input is missing")
	}
	obj, ok := step.Input.(map[string]any)
	if !ok {
		return nil, invalid(step.StepID, "sub_task_input must be an object")
	}
	return obj, nil
}

func validateLocalStep(step *StepDefinition) error {
	switch step.Tool {
	case LocalWebExplore:
		obj, err := inputObject(step)
		if err != nil {
			return err
		}
		if _, ok := obj["links"]; !ok {
			return invalid(step.StepID, "%s requires input key 'links'", LocalWebExplore)
		}
	case LocalGenerateText:
		obj, err := inputObject(step)
		if err != nil {
			return err
		}
		_, hasPrompt := obj["prompt"]
		_, hasTemplate := obj["prompt_template"]
		_, hasMessages := obj["messages"]
		if !hasPrompt && !hasTemplate && !hasMessages {
			return invalid(step.StepID, "%s requires one of 'prompt', 'prompt_template' or 'messages'", LocalGenerateText)
		}
	case LocalFileOperation:
		obj, err := inputObject(step)
		if err != nil {
			return err
		}
		op, _ := obj["operation"].(string)
		if op == "" {
			return invalid(step.StepID, "%s requires input key 'operation'", LocalFileOperation)
		}
		required, ok := FileOperationParams(op)
		if !ok {
			return invalid(step.StepID, "operation '%s' is not allowed (allowed: %v)", op, FileOperations())
		}
		params, ok := obj["params"].(map[string]any)
		if !ok {
			return invalid(step.StepID, "%s requires a 'params' object", LocalFileOperation)
		}
		for _, key := range required {
			if _, ok := params[key]; !ok {
				return invalid(step.StepID, "operation '%s' requires params key '%s'", op, key)
			}
		}
	case LocalDownloadFile:
		obj, err := inputObject(step)
		if err != nil {
			return err
		}
		if _, ok := obj["url"]; !ok {
			return invalid(step.StepID, "%s requires input key 'url'", LocalDownloadFile)
		}
	default:
		return invalid(step.StepID, "unknown local action '%s'", step.Tool)
	}
	return nil
}

func validateWorkerStep(step *StepDefinition, catalog *Catalog) error {
	if catalog == nil {
		return invalid(step.StepID, "no role catalog loaded")
	}
	if !catalog.HasRole(step.Role) {
		return invalid(step.StepID, "unknown worker role '%s'", step.Role)
	}
	def, ok := catalog.Tool(step.Role, step.Tool)
	if !ok {
		return invalid(step.StepID, "role '%s' does not support tool '%s'", step.Role, step.Tool)
	}
	if len(def.PayloadSchema.Required) > 0 {
		obj, err := inputObject(step)
		if err != nil {
			return err
		}
		for _, key := range def.PayloadSchema.Required {
			if _, present := obj[key]; !present {
				return invalid(step.StepID, "tool '%s' requires input key '%s'", step.Tool, key)
			}
		}
	}
	return nil
}

// checkReferenceSyntax walks a step's input and rejects any string that
// contains the reference marker but does not match the full grammar.
// A valid reference must be the entire string value.
func checkReferenceSyntax(v any, stepID string) error {
	switch t := v.(type) {
	case map[string]any:
		for _, vv := range t {
			if err := checkReferenceSyntax(vv, stepID); err != nil {
				return err
			}
		}
	case []any:
		for _, vv := range t {
			if err := checkReferenceSyntax(vv, stepID); err != nil {
				return err
			}
		}
	case string:
		if !ContainsReferenceMarker(t) {
			return nil
		}
		if _, _, ok := ParseReference(t); !ok {
			return invalid(stepID, "malformed output reference in %q; expected exactly @{outputs.<stepId>.result_data} or @{outputs.<stepId>.processed_result_data}", t)
		}
	}
	return nil
}

// collectReferences gathers referenced step ids anywhere inside v.
func collectReferences(v any, out map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for _, vv := range t {
			collectReferences(vv, out)
		}
	case []any:
		for _, vv := range t {
			collectReferences(vv, out)
		}
	case string:
		if id, _, ok := ParseReference(t); ok {
			out[id] = struct{}{}
		}
	}
}

// validateStageDependencies verifies every output reference points at a
// step completed in a prior stage. Same-stage steps run concurrently and
// never see each other's outputs.
func validateStageDependencies(p Plan) error {
	seen := map[string]struct{}{}
	for si, stage := range p {
		for _, step := range stage {
			refs := map[string]struct{}{}
			collectReferences(step.Input, refs)
			for id := range refs {
				if _, ok := seen[id]; !ok {
					return invalid(step.StepID,
						"references @{outputs.%s...}, which is not produced by a prior stage (stage %d); move this step to a later stage", id, si+1)
				}
			}
		}
		for _, step := range stage {
			seen[step.StepID] = struct{}{}
		}
	}
	return nil
}

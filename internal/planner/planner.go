// Package planner produces execution plans. The engine only consumes a
// validated plan; whether it came from a template, a model completion or
// a revision is this package's business.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stagehand/internal/engine"
	"stagehand/internal/llm"
	"stagehand/internal/plan"
)

// ReplanContext seeds a revision prompt with what happened on the failed
// attempt. It is prompting material only: the revised plan starts with a
// fresh execution context and must not reference prior outputs.
type ReplanContext struct {
	PriorPlan   plan.Plan
	Failed      *engine.FailureDetails
	Context     *engine.ExecutionContext
	Errors      []string
	KeyFindings []string
}

// Planner is the external collaborator the supervisor drives.
type Planner interface {
	GetPlan(ctx context.Context, goal string, prior *ReplanContext) (plan.Plan, error)
}

// LLMPlanner builds plans through the text-completion collaborator.
type LLMPlanner struct {
	client  llm.Client
	catalog *plan.Catalog
	model   string
}

func NewLLMPlanner(client llm.Client, catalog *plan.Catalog, model string) *LLMPlanner {
	return &LLMPlanner{client: client, catalog: catalog, model: model}
}

// GetPlan generates, parses and validates a plan for the goal. An explicit
// empty plan surfaces as plan.ErrNothingToDo.
func (p *LLMPlanner) GetPlan(ctx context.Context, goal string, prior *ReplanContext) (plan.Plan, error) {
	prompt := p.buildPrompt(goal, prior)

	raw, err := p.client.GenerateJSON(ctx, prompt, p.model, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}

	generated, err := plan.Parse([]byte(raw))
	if err != nil {
		if err == plan.ErrNothingToDo {
			return nil, err
		}
		return nil, fmt.Errorf("error parsing generated plan: %w\nRaw response: %s", err, raw)
	}

	if err := plan.Validate(generated, p.catalog); err != nil {
		return nil, fmt.Errorf("generated plan invalid: %w", err)
	}
	return generated, nil
}

func (p *LLMPlanner) buildPrompt(goal string, prior *ReplanContext) string {
	var sb strings.Builder

	sb.WriteString("You are an expert AI workflow planner. Convert the user's goal into a STRICT JSON execution plan.\n")
	sb.WriteString("Respond ONLY with JSON. No extra text.\n\n")

	sb.WriteString("OUTPUT JSON SHAPE: an array of stages; each stage is an array of step objects:\n")
	sb.WriteString(`[[{"stepId": "<unique slug>", "narrative_step": "<what this step does>", "assigned_agent_role": "<role or 'local'>", "tool_name": "<tool or local action>", "sub_task_input": {}}]]` + "\n")
	sb.WriteString("Respond with [] if the goal requires no work at all.\n\n")

	sb.WriteString("SEMANTICS:\n")
	sb.WriteString("- Steps in the SAME stage run IN PARALLEL and must not depend on each other.\n")
	sb.WriteString("- Stages run SEQUENTIALLY; stage N completes before stage N+1 starts.\n")
	sb.WriteString("- A later step consumes an earlier step's output by setting an input value to EXACTLY '@{outputs.<stepId>.result_data}' or '@{outputs.<stepId>.processed_result_data}'. The reference must be the entire string value.\n")
	sb.WriteString("- Every stepId must be unique across the whole plan.\n\n")

	sb.WriteString(p.catalog.PromptPart() + "\n")

	sb.WriteString("LOCAL ACTIONS (assigned_agent_role=\"local\"):\n")
	sb.WriteString("- `web_explore`: input {links: [urls or {url} objects]}; fetches each link and concatenates the readable text, tolerating individual link failures.\n")
	sb.WriteString("- `generate_text`: input {prompt} OR {prompt_template, template_values} OR {messages: [{role, content}]}. Set is_final_answer: true on the single step producing the user-facing answer. The reserved placeholder {previous_step_output} expands to the previous step's output.\n")
	sb.WriteString(fmt.Sprintf("- `file_operation`: input {operation, params}; operation is one of %v; params always includes 'path', writes also need 'content'. Paths are relative to the task workspace.\n", plan.FileOperations()))
	sb.WriteString("- `download_file`: input {url, filename?}; saves the URL into the task workspace.\n\n")

	sb.WriteString("HARD RULES:\n")
	sb.WriteString("1) NEVER reference '@{outputs...}' from a step in the SAME stage. If A needs B's output, put A in a later stage.\n")
	sb.WriteString("2) Do NOT invent URLs. Discover links from fetched pages via the web_agent tools or take them from the goal.\n")
	sb.WriteString("3) End the plan with one local generate_text step with is_final_answer: true that produces the final answer for the user.\n")
	sb.WriteString("4) Keep stepIds short, lowercase and descriptive.\n")

	if prior != nil {
		sb.WriteString("\nPREVIOUS ATTEMPT (for revision; do NOT reference its outputs - your plan starts fresh):\n")
		if b, err := json.Marshal(prior.PriorPlan); err == nil {
			sb.WriteString("Previous plan: " + string(b) + "\n")
		}
		if prior.Failed != nil {
			sb.WriteString(fmt.Sprintf("Failed step: '%s' (%s via %s/%s): %s\n",
				prior.Failed.StepID, prior.Failed.Narrative, prior.Failed.Role, prior.Failed.Tool, prior.Failed.ErrorDetails))
		}
		for _, e := range prior.Errors {
			sb.WriteString("Collected error: " + e + "\n")
		}
		for _, f := range prior.KeyFindings {
			sb.WriteString("Key finding: " + f + "\n")
		}
		if prior.Context != nil {
			for _, entry := range prior.Context.Entries {
				sb.WriteString(fmt.Sprintf("Executed step '%s' (%s): status %s\n", entry.StepID, entry.Narrative, entry.Output.Status))
			}
		}
		sb.WriteString("Produce a REVISED plan that avoids the failure above.\n")
	}

	sb.WriteString(fmt.Sprintf("\nUser Goal: %q\n", goal))
	sb.WriteString("Assistant: ")
	return sb.String()
}

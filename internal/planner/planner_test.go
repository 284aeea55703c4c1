package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stagehand/internal/engine"
	"stagehand/internal/llm"
	"stagehand/internal/plan"
)

type fakeClient struct {
	lastPrompt string
	reply      string
	err        error
}

func (f *fakeClient) GenerateText(ctx context.Context, prompt, model string) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func (f *fakeClient) GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func (f *fakeClient) CompleteChat(ctx context.Context, messages []llm.Message, model string) (string, error) {
	return f.reply, f.err
}

func webCatalog() *plan.Catalog {
	def := plan.RoleDefinition{Role: "web_agent"}
	fetch := plan.ToolDefinition{Name: "fetch_page", Description: "Fetches a page."}
	fetch.PayloadSchema.Required = []string{"url"}
	def.Tools = []plan.ToolDefinition{fetch}
	return plan.NewCatalog([]plan.RoleDefinition{def})
}

const validPlanJSON = `[
  [{"stepId": "fetch", "narrative_step": "fetch the page", "assigned_agent_role": "web_agent", "tool_name": "fetch_page", "sub_task_input": {"url": "https://example.com"}}],
  [{"stepId": "answer", "narrative_step": "answer", "assigned_agent_role": "local", "tool_name": "generate_text", "sub_task_input": {"prompt": "@{outputs.fetch.result_data}", "is_final_answer": true}}]
]`

func TestGetPlanParsesAndValidates(t *testing.T) {
	client := &fakeClient{reply: validPlanJSON}
	p := NewLLMPlanner(client, webCatalog(), "")

	got, err := p.GetPlan(context.Background(), "summarize example.com", nil)
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Plan has %d stage(s), want 2", len(got))
	}
	if got[0][0].StepID != "fetch" || got[1][0].StepID != "answer" {
		t.Errorf("Unexpected step ids: %s, %s", got[0][0].StepID, got[1][0].StepID)
	}

	// The prompt must teach the model the catalog and the goal.
	for _, fragment := range []string{"fetch_page", "summarize example.com", "@{outputs.", "IN PARALLEL"} {
		if !strings.Contains(client.lastPrompt, fragment) {
			t.Errorf("Planner prompt is missing %q", fragment)
		}
	}
}

func TestGetPlanRejectsInvalidPlans(t *testing.T) {
	testCases := []struct {
		name  string
		reply string
	}{
		{
			name:  "Malformed JSON",
			reply: `[[{"stepId": `,
		},
		{
			name: "Unknown role",
			reply: `[[{"stepId": "s1", "narrative_step": "n", "assigned_agent_role": "db_agent",
				"tool_name": "query", "sub_task_input": {}}]]`,
		},
		{
			name: "Same-stage reference",
			reply: `[[
				{"stepId": "a", "narrative_step": "n", "assigned_agent_role": "web_agent", "tool_name": "fetch_page", "sub_task_input": {"url": "https://example.com"}},
				{"stepId": "b", "narrative_step": "n", "assigned_agent_role": "local", "tool_name": "generate_text", "sub_task_input": {"prompt": "@{outputs.a.result_data}"}}
			]]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewLLMPlanner(&fakeClient{reply: tc.reply}, webCatalog(), "")
			if _, err := p.GetPlan(context.Background(), "goal", nil); err == nil {
				t.Error("Expected an error, but got nil")
			}
		})
	}
}

func TestGetPlanPassesThroughNothingToDo(t *testing.T) {
	p := NewLLMPlanner(&fakeClient{reply: `[]`}, webCatalog(), "")
	_, err := p.GetPlan(context.Background(), "do nothing", nil)
	if !errors.Is(err, plan.ErrNothingToDo) {
		t.Errorf("GetPlan error = %v, want ErrNothingToDo", err)
	}
}

func TestGetPlanRevisionPromptCarriesFailure(t *testing.T) {
	client := &fakeClient{reply: validPlanJSON}
	p := NewLLMPlanner(client, webCatalog(), "")

	prior := &ReplanContext{
		PriorPlan: plan.Plan{{{StepID: "old", Narrative: "n", Role: "local", Tool: "generate_text",
			Input: map[string]any{"prompt": "x"}}}},
		Failed: &engine.FailureDetails{
			StepID:       "old",
			Narrative:    "n",
			Role:         "local",
			Tool:         "generate_text",
			ErrorDetails: "completion backend unavailable",
		},
		Errors:      []string{"collected: backend down"},
		KeyFindings: []string{"site uses pagination"},
	}
	if _, err := p.GetPlan(context.Background(), "goal", prior); err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}

	for _, fragment := range []string{"REVISED", "completion backend unavailable", "site uses pagination", "collected: backend down"} {
		if !strings.Contains(client.lastPrompt, fragment) {
			t.Errorf("Revision prompt is missing %q", fragment)
		}
	}
}

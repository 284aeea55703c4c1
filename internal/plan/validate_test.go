package plan

import (
	"strings"
	"testing"
)

func testCatalog() *Catalog {
	web := RoleDefinition{Role: "web_agent"}
	fetch := ToolDefinition{Name: "fetch_page", Description: "Fetches a page."}
	fetch.PayloadSchema.Required = []string{"url"}
	web.Tools = []ToolDefinition{fetch}
	return NewCatalog([]RoleDefinition{web})
}

func localStep(id, tool string, input map[string]any) StepDefinition {
	return StepDefinition{
		StepID:    id,
		Narrative: "does " + id,
		Role:      RoleLocal,
		Tool:      tool,
		Input:     input,
	}
}

func webStep(id string, input map[string]any) StepDefinition {
	return StepDefinition{
		StepID:    id,
		Narrative: "fetches for " + id,
		Role:      "web_agent",
		Tool:      "fetch_page",
		Input:     input,
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		plan        Plan
		expectError bool
		errContains string
	}{
		{
			name: "Valid two-stage plan with a cross-stage reference",
			plan: Plan{
				{webStep("fetch", map[string]any{"url": "https://example.com"})},
				{localStep("answer", LocalGenerateText, map[string]any{
					"prompt_template": "Summarize: {page}",
					"template_values": map[string]any{"page": "@{outputs.fetch.result_data}"},
				})},
			},
		},
		{
			name:        "Empty plan",
			plan:        Plan{},
			expectError: true,
			errContains: "no stages",
		},
		{
			name:        "Stage with no steps",
			plan:        Plan{{}},
			expectError: true,
			errContains: "has no steps",
		},
		{
			name: "Duplicate stepId across stages",
			plan: Plan{
				{webStep("fetch", map[string]any{"url": "https://example.com"})},
				{webStep("fetch", map[string]any{"url": "https://example.org"})},
			},
			expectError: true,
			errContains: "duplicate stepId",
		},
		{
			name: "Empty narrative",
			plan: Plan{{
				{StepID: "s1", Role: RoleLocal, Tool: LocalGenerateText, Input: map[string]any{"prompt": "hi"}},
			}},
			expectError: true,
			errContains: "narrative_step",
		},
		{
			name: "Unknown worker role",
			plan: Plan{{
				{StepID: "s1", Narrative: "n", Role: "db_agent", Tool: "query", Input: map[string]any{}},
			}},
			expectError: true,
			errContains: "unknown worker role",
		},
		{
			name: "Known role with unknown tool",
			plan: Plan{{
				{StepID: "s1", Narrative: "n", Role: "web_agent", Tool: "render_pdf", Input: map[string]any{}},
			}},
			expectError: true,
			errContains: "does not support tool",
		},
		{
			name: "Worker tool missing a required input key",
			plan: Plan{{
				{StepID: "s1", Narrative: "n", Role: "web_agent", Tool: "fetch_page", Input: map[string]any{"link": "x"}},
			}},
			expectError: true,
			errContains: "requires input key 'url'",
		},
		{
			name: "Unknown local action",
			plan: Plan{{
				localStep("s1", "format_disk", map[string]any{}),
			}},
			expectError: true,
			errContains: "unknown local action",
		},
		{
			name: "generate_text without any prompt form",
			plan: Plan{{
				localStep("s1", LocalGenerateText, map[string]any{"temperature": 0.2}),
			}},
			expectError: true,
			errContains: "requires one of",
		},
		{
			name: "file_operation with a non-allow-listed operation",
			plan: Plan{{
				localStep("s1", LocalFileOperation, map[string]any{
					"operation": "chmod_file",
					"params":    map[string]any{"path": "a.txt"},
				}),
			}},
			expectError: true,
			errContains: "not allowed",
		},
		{
			name: "file_operation write missing content param",
			plan: Plan{{
				localStep("s1", LocalFileOperation, map[string]any{
					"operation": "write_file",
					"params":    map[string]any{"path": "a.txt"},
				}),
			}},
			expectError: true,
			errContains: "requires params key 'content'",
		},
		{
			name: "Malformed reference embedded in a string",
			plan: Plan{
				{webStep("fetch", map[string]any{"url": "https://example.com"})},
				{localStep("answer", LocalGenerateText, map[string]any{
					"prompt": "Summarize: @{outputs.fetch.result_data}",
				})},
			},
			expectError: true,
			errContains: "malformed output reference",
		},
		{
			name: "Same-stage reference",
			plan: Plan{{
				webStep("fetch", map[string]any{"url": "https://example.com"}),
				localStep("answer", LocalGenerateText, map[string]any{
					"prompt": "@{outputs.fetch.result_data}",
				}),
			}},
			expectError: true,
			errContains: "not produced by a prior stage",
		},
		{
			name: "Forward reference to a later stage",
			plan: Plan{
				{localStep("answer", LocalGenerateText, map[string]any{
					"prompt": "@{outputs.fetch.result_data}",
				})},
				{webStep("fetch", map[string]any{"url": "https://example.com"})},
			},
			expectError: true,
			errContains: "not produced by a prior stage",
		},
	}

	catalog := testCatalog()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.plan, catalog)
			if tc.expectError {
				if err == nil {
					t.Fatal("Expected an error, but got nil")
				}
				if tc.errContains != "" && !strings.Contains(err.Error(), tc.errContains) {
					t.Errorf("Error %q does not contain %q", err.Error(), tc.errContains)
				}
				if _, ok := err.(*ValidationError); !ok {
					t.Errorf("Expected a *ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Did not expect an error, but got: %v", err)
			}
		})
	}
}

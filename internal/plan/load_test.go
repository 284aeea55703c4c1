package plan

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		wantStages int
		wantErr    error
		expectErr  bool
	}{
		{
			name:       "Bare array of stages",
			input:      `[[{"stepId": "s1", "narrative_step": "n", "assigned_agent_role": "local", "tool_name": "generate_text", "sub_task_input": {"prompt": "hi"}}]]`,
			wantStages: 1,
		},
		{
			name:       "Wrapped plan object",
			input:      `{"plan": [[{"stepId": "s1"}], [{"stepId": "s2"}]]}`,
			wantStages: 2,
		},
		{
			name:    "Explicit empty array is nothing to do",
			input:   `[]`,
			wantErr: ErrNothingToDo,
		},
		{
			name:    "Explicit empty wrapped plan is nothing to do",
			input:   `{"plan": []}`,
			wantErr: ErrNothingToDo,
		},
		{
			name:      "Malformed JSON",
			input:     `[[{"stepId": `,
			expectErr: true,
		},
		{
			name:      "Unrelated object",
			input:     `{"message": "I cannot help with that"}`,
			expectErr: true,
		},
		{
			name:      "Empty document",
			input:     ``,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse([]byte(tc.input))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Parse error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if tc.expectErr {
				if err == nil {
					t.Fatal("Expected an error, but got nil")
				}
				if errors.Is(err, ErrNothingToDo) {
					t.Error("Malformed input must not be reported as ErrNothingToDo")
				}
				return
			}
			if err != nil {
				t.Fatalf("Did not expect an error, but got: %v", err)
			}
			if len(p) != tc.wantStages {
				t.Errorf("Parsed %d stage(s), want %d", len(p), tc.wantStages)
			}
		})
	}
}

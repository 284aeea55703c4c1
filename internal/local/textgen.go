package local

import (
	"context"
	"fmt"
	"strings"

	"stagehand/internal/llm"
)

// previousOutputPlaceholder is the reserved template placeholder filled
// with the most recent step's output from the execution context.
const previousOutputPlaceholder = "{previous_step_output}"

// generateText invokes the text-completion collaborator with one of three
// prompt kinds: a direct prompt, a template with placeholder substitution,
// or a chat-message array. The completion text becomes result_data.
func (r *Runner) generateText(ctx context.Context, input map[string]any, previousOutput string) (*Result, error) {
	if r.llm == nil {
		return nil, fmt.Errorf("generate_text: no text-completion client configured")
	}
	model, _ := input["model"].(string)
	isFinal := getBool(input, "is_final_answer")

	var text string
	var err error
	switch {
	case input["messages"] != nil:
		messages, merr := coerceMessages(input["messages"])
		if merr != nil {
			return nil, fmt.Errorf("generate_text: %w", merr)
		}
		text, err = r.llm.CompleteChat(ctx, messages, model)
	case input["prompt_template"] != nil:
		tpl, terr := getString(input, "prompt_template")
		if terr != nil {
			return nil, fmt.Errorf("generate_text: %w", terr)
		}
		prompt := expandTemplate(tpl, input, previousOutput)
		text, err = r.llm.GenerateText(ctx, prompt, model)
	default:
		prompt, perr := getString(input, "prompt")
		if perr != nil {
			return nil, fmt.Errorf("generate_text: %w", perr)
		}
		text, err = r.llm.GenerateText(ctx, prompt, model)
	}
	if err != nil {
		return nil, fmt.Errorf("generate_text: %w", err)
	}

	return &Result{Data: text, IsFinalAnswer: isFinal}, nil
}

// expandTemplate substitutes {name} placeholders from template_values and
// the reserved {previous_step_output} placeholder.
func expandTemplate(tpl string, input map[string]any, previousOutput string) string {
	out := strings.ReplaceAll(tpl, previousOutputPlaceholder, previousOutput)
	values, _ := input["template_values"].(map[string]any)
	for name, v := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", fmt.Sprintf("%v", v))
	}
	return out
}

func coerceMessages(v any) ([]llm.Message, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("messages must be an array")
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("messages is empty")
	}
	out := make([]llm.Message, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("messages[%d] must be an object", i)
		}
		role, _ := obj["role"].(string)
		content, _ := obj["content"].(string)
		if content == "" {
			return nil, fmt.Errorf("messages[%d] has no content", i)
		}
		if role == "" {
			role = "user"
		}
		out = append(out, llm.Message{Role: role, Content: content})
	}
	return out, nil
}

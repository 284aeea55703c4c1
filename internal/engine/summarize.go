package engine

import (
	"context"
	"fmt"

	"stagehand/internal/llm"
)

// NewSummarizer builds the default post-processing hook: step outputs
// whose text exceeds threshold bytes are condensed through the
// text-completion collaborator into processed_result_data. Anything else
// passes through untouched.
func NewSummarizer(client llm.Client, threshold int, model string) PostProcessor {
	if threshold <= 0 {
		threshold = 8 * 1024
	}
	return func(ctx context.Context, entry *ContextEntry) (any, bool, error) {
		text, ok := entry.Output.ResultData.(string)
		if !ok || len(text) <= threshold {
			return nil, false, nil
		}
		if client == nil {
			return nil, false, nil
		}
		prompt := fmt.Sprintf(
			"Condense the following output of the step %q (%s) into the key facts needed by later steps. Keep concrete values, names and numbers. Output plain text only.\n\n%s",
			entry.StepID, entry.Narrative, text)
		summary, err := client.GenerateText(ctx, prompt, model)
		if err != nil {
			return nil, false, fmt.Errorf("summarization: %w", err)
		}
		return summary, true, nil
	}
}

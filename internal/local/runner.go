// Package local implements the step kinds the engine runs in-process
// instead of dispatching to a worker: a multi-link web exploration loop,
// text generation, and sandboxed file/download operations.
package local

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stagehand/internal/llm"
	"stagehand/internal/plan"
	"stagehand/internal/workspace"
)

// Result is the settled outcome of one local action. PartialErrors hold
// sub-item failures that did not fail the action itself.
type Result struct {
	Data          any
	PartialErrors []string
	IsFinalAnswer bool
}

// Options bound the exploration loop.
type Options struct {
	// PerLinkTimeout caps one fetch attempt inside web_explore.
	PerLinkTimeout time.Duration
	// MaxLinkContent truncates extracted page text, in bytes.
	MaxLinkContent int
	// FetchConcurrency caps concurrent link fetches.
	FetchConcurrency int
}

func (o Options) withDefaults() Options {
	if o.PerLinkTimeout <= 0 {
		o.PerLinkTimeout = 20 * time.Second
	}
	if o.MaxLinkContent <= 0 {
		o.MaxLinkContent = 16 * 1024
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 4
	}
	return o
}

// Runner executes local actions. Safe for concurrent use: every method is
// stateless over the injected collaborators.
type Runner struct {
	llm        llm.Client
	workspaces *workspace.Manager
	httpClient *http.Client
	opts       Options
}

func NewRunner(client llm.Client, workspaces *workspace.Manager, httpClient *http.Client, opts Options) *Runner {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Runner{
		llm:        client,
		workspaces: workspaces,
		httpClient: httpClient,
		opts:       opts.withDefaults(),
	}
}

// Run dispatches one local action by name. The action set is closed; an
// unknown name is an error, not a lookup miss.
func (r *Runner) Run(ctx context.Context, parentTaskID, tool string, input map[string]any, previousOutput string) (*Result, error) {
	switch tool {
	case plan.LocalWebExplore:
		return r.explore(ctx, input)
	case plan.LocalGenerateText:
		return r.generateText(ctx, input, previousOutput)
	case plan.LocalFileOperation:
		return r.fileOperation(parentTaskID, input)
	case plan.LocalDownloadFile:
		return r.download(ctx, parentTaskID, input)
	default:
		return nil, fmt.Errorf("unknown local action: %s", tool)
	}
}

func getString(input map[string]any, key string) (string, error) {
	value, ok := input[key]
	if !ok {
		return "", fmt.Errorf("input is missing required key: '%s'", key)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("input key '%s' has an invalid type (expected string)", key)
	}
	return s, nil
}

func getBool(input map[string]any, key string) bool {
	b, _ := input[key].(bool)
	return b
}

// Package llm is the text-completion collaborator: a Provider interface
// with Gemini and Ollama backends. The engine invokes it only through the
// local text-generation action and the summarization hook; the planner
// uses it for plan generation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is returned when a provider is used before Init.
var ErrNotInitialized = errors.New("llm client not initialized")

// Message is one turn of a chat-style prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the surface the engine and planner consume. Implementations
// must be safe for concurrent use.
type Client interface {
	GenerateText(ctx context.Context, prompt, model string) (string, error)
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
	CompleteChat(ctx context.Context, messages []Message, model string) (string, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend    string
	Model      string
	OllamaHost string
}

type provider interface {
	Client
	Init(cfg Config) error
}

// New initializes the configured backend and returns it as a Client.
func New(cfg Config) (Client, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	var p provider
	switch backend {
	case "gemini":
		p = &geminiProvider{}
	case "ollama":
		p = &ollamaProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", cfg.Backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

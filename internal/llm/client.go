package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type ToolCall struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// Param is a string argument of a tool. Every tool in this repo takes only
// string arguments, which keeps the schema identical across providers.
type Param struct {
	Name        string
	Description string
	Optional    bool
}

type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
}

type ChatRequest struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Client is a chat-completion backend able to request tool calls.
type Client interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (Message, Usage, error)
	Close() error
}

type Options struct {
	Provider    string
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultOpenAIModel = "gpt-4-turbo-preview"
	DefaultGeminiModel = "gemini-2.0-flash"
)

func New(ctx context.Context, opts Options) (Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", opts.Provider)
	}
	switch strings.ToLower(opts.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(opts), nil
	case ProviderGemini:
		return NewGemini(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}

// jsonSchema renders the params as an OpenAI-style JSON schema object.
func (s ToolSpec) jsonSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := []string{}
	for _, p := range s.Params {
		props[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

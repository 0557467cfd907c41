package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		client:      client,
		model:       model,
		temperature: float32(opts.Temperature),
	}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Gemini) Chat(ctx context.Context, req ChatRequest) (Message, Usage, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, spec := range req.Tools {
			decls = append(decls, geminiDeclaration(spec))
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := toGeminiContents(req.Messages)
	if len(contents) == 0 {
		return Message{}, Usage{}, fmt.Errorf("no messages to send")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	resp, err := cs.SendMessage(ctx, contents[len(contents)-1].Parts...)
	if err != nil {
		return Message{}, Usage{}, fmt.Errorf("LLM call failed: %w", err)
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	slog.Debug("LLM API call",
		"provider", ProviderGemini,
		"input_tokens", usage.PromptTokens,
		"output_tokens", usage.CompletionTokens,
		"total_tokens", usage.TotalTokens)

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Message{}, usage, fmt.Errorf("empty response from LLM")
	}

	out := Message{Role: RoleAssistant}
	for i, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Content += string(p)
		case genai.FunctionCall:
			// Gemini has no call IDs; the function name links the response back.
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%d_%s", i, p.Name),
				Name:      p.Name,
				Arguments: stringifyArgs(p.Args),
			})
		}
	}
	return out, usage, nil
}

func geminiDeclaration(spec ToolSpec) *genai.FunctionDeclaration {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(spec.Params)),
	}
	for _, p := range spec.Params {
		schema.Properties[p.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: p.Description,
		}
		if !p.Optional {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  schema,
	}
}

// toGeminiContents maps the conversation onto Gemini's user/model turns.
// Consecutive tool results are merged into a single user turn of
// FunctionResponse parts.
func toGeminiContents(messages []Message) []*genai.Content {
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleUser, RoleSystem:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		case RoleAssistant:
			c := &genai.Content{Role: "model"}
			if m.Content != "" {
				c.Parts = append(c.Parts, genai.Text(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := make(map[string]any, len(tc.Arguments))
				for k, v := range tc.Arguments {
					args[k] = v
				}
				c.Parts = append(c.Parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			contents = append(contents, c)
		case RoleTool:
			part := genai.FunctionResponse{
				Name:     m.Name,
				Response: map[string]any{"result": m.Content},
			}
			if n := len(contents); n > 0 && contents[n-1].Role == "user" && isFunctionResponse(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{part}})
		}
	}
	return contents
}

func isFunctionResponse(c *genai.Content) bool {
	if len(c.Parts) == 0 {
		return false
	}
	_, ok := c.Parts[0].(genai.FunctionResponse)
	return ok
}

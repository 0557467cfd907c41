package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAI(opts Options) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: float32(opts.Temperature),
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Chat(ctx context.Context, req ChatRequest) (Message, Usage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		converted, err := toOpenAIMessage(m)
		if err != nil {
			return Message{}, Usage{}, err
		}
		messages = append(messages, converted)
	}

	ccr := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
	}
	for _, spec := range req.Tools {
		ccr.Tools = append(ccr.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.jsonSchema(),
			},
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return Message{}, Usage{}, fmt.Errorf("LLM call failed: %w", err)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	slog.Debug("LLM API call",
		"provider", ProviderOpenAI,
		"input_tokens", usage.PromptTokens,
		"output_tokens", usage.CompletionTokens,
		"total_tokens", usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return Message{}, usage, fmt.Errorf("empty response from LLM")
	}

	choice := resp.Choices[0].Message
	out := Message{Role: RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		args := map[string]string{}
		if tc.Function.Arguments != "" {
			args, err = decodeArguments(tc.Function.Arguments)
			if err != nil {
				return Message{}, usage, fmt.Errorf("tool call %s: %w", tc.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, usage, nil
}

func toOpenAIMessage(m Message) (openai.ChatCompletionMessage, error) {
	switch m.Role {
	case RoleUser:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content}, nil
	case RoleSystem:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content}, nil
	case RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}, nil
	case RoleAssistant:
		msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
		for _, tc := range m.ToolCalls {
			raw, err := json.Marshal(tc.Arguments)
			if err != nil {
				return msg, fmt.Errorf("failed to encode tool arguments: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(raw),
				},
			})
		}
		return msg, nil
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("unsupported message role %q", m.Role)
	}
}

// decodeArguments accepts any JSON object and stringifies non-string values.
func decodeArguments(raw string) (map[string]string, error) {
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return stringifyArgs(generic), nil
}

func stringifyArgs(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(raw)
		}
	}
	return out
}

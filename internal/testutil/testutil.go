// Package testutil holds fakes and fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/drukpa1455/crewai-job/internal/llm"
)

// ScriptedLLM replays canned assistant messages in order and records every
// request it receives. Running past the script is an error.
type ScriptedLLM struct {
	mu       sync.Mutex
	script   []llm.Message
	Requests []llm.ChatRequest
	Err      error
}

func NewScriptedLLM(msgs ...llm.Message) *ScriptedLLM {
	return &ScriptedLLM{script: msgs}
}

// Answer is a final assistant message with no tool calls.
func Answer(content string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: content}
}

// CallTool is an assistant message requesting a single tool call.
func CallTool(id, name string, args map[string]string) llm.Message {
	return llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func (s *ScriptedLLM) Name() string { return "scripted" }
func (s *ScriptedLLM) Close() error { return nil }

func (s *ScriptedLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.Message, llm.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy messages: the caller keeps appending to its slice.
	req.Messages = append([]llm.Message(nil), req.Messages...)
	s.Requests = append(s.Requests, req)
	if err := ctx.Err(); err != nil {
		return llm.Message{}, llm.Usage{}, err
	}
	if s.Err != nil {
		return llm.Message{}, llm.Usage{}, s.Err
	}
	if len(s.script) == 0 {
		return llm.Message{}, llm.Usage{}, fmt.Errorf("scripted LLM exhausted after %d calls", len(s.Requests)-1)
	}
	msg := s.script[0]
	s.script = s.script[1:]
	return msg, llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

// Calls returns the number of requests received so far.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/drukpa1455/crewai-job/internal/llm"
	"github.com/drukpa1455/crewai-job/internal/tools"
)

const DefaultMaxIterations = 15

// ErrMaxIterations means the model kept requesting tools past the agent's
// round limit without giving a final answer.
var ErrMaxIterations = errors.New("agent exceeded maximum tool iterations")

type Agent struct {
	Role          string
	Goal          string
	Backstory     string
	Tools         tools.Registry
	LLM           llm.Client
	MaxIterations int
	// CallTimeout bounds each model call; zero means no extra deadline.
	CallTimeout time.Duration
}

type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Context        []*Task

	Output string
	Usage  llm.Usage
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s\nYour personal goal is: %s", a.Role, strings.TrimSpace(a.Backstory), a.Goal)
	if len(a.Tools) > 0 {
		b.WriteString("\n\nYou can call the tools you were given. Call a tool whenever you need its result; when you are done, reply with your final answer and no tool calls.")
	}
	return b.String()
}

// Prompt builds the user message for a task, including the outputs of the
// tasks it depends on.
func (t *Task) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Task: %s\n\n", strings.TrimSpace(t.Description))
	fmt.Fprintf(&b, "This is the expected criteria for your final answer: %s\n", t.ExpectedOutput)
	b.WriteString("You MUST return the actual complete content as the final answer, not a summary.")

	var parts []string
	for _, c := range t.Context {
		if c.Output != "" {
			parts = append(parts, c.Output)
		}
	}
	if len(parts) > 0 {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(strings.Join(parts, "\n\n----------\n\n"))
	}
	b.WriteString("\n\nBegin!")
	return b.String()
}

// Execute runs the tool loop for one task and stores the final answer in
// t.Output.
func (a *Agent) Execute(ctx context.Context, t *Task) (string, error) {
	logger := slog.With("component", "agent", "role", a.Role, "task", t.Name)
	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	req := llm.ChatRequest{
		System:   a.systemPrompt(),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: t.Prompt()}},
		Tools:    a.Tools.Specs(),
	}

	for round := 1; round <= maxIter; round++ {
		msg, usage, err := a.chat(ctx, req)
		t.Usage = t.Usage.Add(usage)
		if err != nil {
			return "", fmt.Errorf("task %s: %w", t.Name, err)
		}
		req.Messages = append(req.Messages, msg)

		if len(msg.ToolCalls) == 0 {
			logger.InfoContext(ctx, "task finished",
				"rounds", round,
				"total_tokens", t.Usage.TotalTokens)
			t.Output = strings.TrimSpace(msg.Content)
			return t.Output, nil
		}

		for _, tc := range msg.ToolCalls {
			logger.InfoContext(ctx, "tool call", "tool", tc.Name, "round", round)
			result := a.Tools.Call(ctx, tc.Name, tc.Arguments)
			req.Messages = append(req.Messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    result,
			})
		}
	}

	logger.ErrorContext(ctx, "tool loop did not converge", "max_iterations", maxIter)
	return "", fmt.Errorf("task %s: %w (%d)", t.Name, ErrMaxIterations, maxIter)
}

func (a *Agent) chat(ctx context.Context, req llm.ChatRequest) (llm.Message, llm.Usage, error) {
	if a.LLM == nil {
		return llm.Message{}, llm.Usage{}, fmt.Errorf("agent %q has no LLM", a.Role)
	}
	if a.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.CallTimeout)
		defer cancel()
	}
	return a.LLM.Chat(ctx, req)
}

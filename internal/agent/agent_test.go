package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drukpa1455/crewai-job/internal/llm"
	"github.com/drukpa1455/crewai-job/internal/testutil"
	"github.com/drukpa1455/crewai-job/internal/tools"
)

func TestExecute_RunsToolsAndFeedsResultsBack(t *testing.T) {
	dir := t.TempDir()
	cvPath := filepath.Join(dir, "CV.txt")
	if err := os.WriteFile(cvPath, []byte("Jane Doe, Go developer"), 0644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "output", "CV_Acme_Engineer.txt")

	model := testutil.NewScriptedLLM(
		testutil.CallTool("c1", "read_text_file", map[string]string{"file_path": cvPath}),
		testutil.CallTool("c2", "write_text_file", map[string]string{"file_path": outPath, "content": "Tailored CV"}),
		testutil.Answer("  CV saved.  "),
	)
	a := &Agent{
		Role:      "CV/Resume Writer",
		Goal:      "Modify CV",
		Backstory: "You write CVs.",
		Tools:     tools.NewRegistry(tools.ReadTextFile(), tools.WriteTextFile(nil)),
		LLM:       model,
	}
	task := &Task{Name: "modify_cv", Description: "Tailor the CV", ExpectedOutput: "Confirmation", Agent: a}

	out, err := a.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "CV saved." || task.Output != "CV saved." {
		t.Errorf("unexpected output %q", out)
	}
	if task.Usage.TotalTokens != 45 {
		t.Errorf("expected usage over 3 calls, got %d", task.Usage.TotalTokens)
	}

	if model.Calls() != 3 {
		t.Fatalf("expected 3 model calls, got %d", model.Calls())
	}
	second := model.Requests[1]
	toolMsg := second.Messages[len(second.Messages)-1]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "c1" || toolMsg.Content != "Jane Doe, Go developer" {
		t.Errorf("expected read result fed back, got %+v", toolMsg)
	}
	if len(second.Tools) != 2 {
		t.Errorf("expected tool specs on every call, got %d", len(second.Tools))
	}
	if !strings.Contains(model.Requests[0].System, "You are CV/Resume Writer.") {
		t.Errorf("unexpected system prompt %q", model.Requests[0].System)
	}

	data, err := os.ReadFile(outPath)
	if err != nil || string(data) != "Tailored CV" {
		t.Errorf("expected written file, got %q, %v", data, err)
	}
}

func TestExecute_MaxIterations(t *testing.T) {
	var script []llm.Message
	for i := 0; i < 5; i++ {
		script = append(script, testutil.CallTool("c", "read_text_file", map[string]string{"file_path": "x"}))
	}
	model := testutil.NewScriptedLLM(script...)
	a := &Agent{Role: "Looper", Tools: tools.NewRegistry(tools.ReadTextFile()), LLM: model, MaxIterations: 3}

	_, err := a.Execute(context.Background(), &Task{Name: "loop"})
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("expected ErrMaxIterations, got %v", err)
	}
	if model.Calls() != 3 {
		t.Errorf("expected 3 calls before giving up, got %d", model.Calls())
	}
}

func TestExecute_UnknownToolIsReportedToModel(t *testing.T) {
	model := testutil.NewScriptedLLM(
		testutil.CallTool("c1", "launch_rockets", nil),
		testutil.Answer("done"),
	)
	a := &Agent{Role: "Writer", LLM: model}

	if _, err := a.Execute(context.Background(), &Task{Name: "t"}); err != nil {
		t.Fatalf("unknown tool must not fail the task: %v", err)
	}
	last := model.Requests[1].Messages[2]
	if !strings.Contains(last.Content, "unknown tool") {
		t.Errorf("expected unknown tool message, got %q", last.Content)
	}
}

func TestExecute_LLMErrorAndTimeout(t *testing.T) {
	model := testutil.NewScriptedLLM()
	model.Err = errors.New("rate limited")
	a := &Agent{Role: "Writer", LLM: model}
	if _, err := a.Execute(context.Background(), &Task{Name: "t"}); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected wrapped LLM error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a = &Agent{Role: "Writer", LLM: testutil.NewScriptedLLM(testutil.Answer("x")), CallTimeout: time.Second}
	if _, err := a.Execute(ctx, &Task{Name: "t"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTaskPrompt_IncludesContextOutputs(t *testing.T) {
	extract := &Task{Name: "extract", Output: `{"job_posting":{"title":"Go Engineer"}}`}
	cv := &Task{Name: "cv", Output: "CV saved to output/CV_Acme_Go_Engineer.txt"}
	empty := &Task{Name: "skipped"}
	eval := &Task{
		Name:           "evaluate",
		Description:    "Review the documents",
		ExpectedOutput: "A score",
		Context:        []*Task{extract, cv, empty},
	}

	p := eval.Prompt()
	for _, want := range []string{
		"Current Task: Review the documents",
		"expected criteria for your final answer: A score",
		`"title":"Go Engineer"`,
		"CV saved to output/CV_Acme_Go_Engineer.txt",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Count(p, "----------") != 1 {
		t.Errorf("expected one separator between two context outputs:\n%s", p)
	}
	if !strings.HasSuffix(p, "Begin!") {
		t.Errorf("prompt should end with Begin!")
	}
}

func TestCrew_Kickoff(t *testing.T) {
	model := testutil.NewScriptedLLM(
		testutil.Answer(`{"job_analysis":{}}`),
		testutil.Answer("CV done"),
		testutil.Answer("Score: 80/100"),
	)
	a := &Agent{Role: "Worker", LLM: model}
	t1 := &Task{Name: "extract", Agent: a}
	t2 := &Task{Name: "cv", Agent: a, Context: []*Task{t1}}
	t3 := &Task{Name: "evaluate", Agent: a, Context: []*Task{t1, t2}}

	var done []string
	crew := &Crew{
		Tasks: []*Task{t1, t2, t3},
		OnTaskDone: func(t *Task, _ time.Duration, err error) {
			done = append(done, t.Name)
		},
	}
	out, err := crew.Kickoff(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Score: 80/100" {
		t.Errorf("expected last task output, got %q", out)
	}
	if strings.Join(done, ",") != "extract,cv,evaluate" {
		t.Errorf("unexpected task order %v", done)
	}
	lastPrompt := model.Requests[2].Messages[0].Content
	if !strings.Contains(lastPrompt, `{"job_analysis":{}}`) || !strings.Contains(lastPrompt, "CV done") {
		t.Errorf("evaluation prompt missing context:\n%s", lastPrompt)
	}
}

func TestCrew_AfterTaskStopsCrew(t *testing.T) {
	model := testutil.NewScriptedLLM(testutil.Answer("bad"), testutil.Answer("never"))
	a := &Agent{Role: "Worker", LLM: model}
	reject := errors.New("rejected")

	var failed error
	crew := &Crew{
		Tasks:      []*Task{{Name: "one", Agent: a}, {Name: "two", Agent: a}},
		AfterTask:  func(context.Context, *Task) error { return reject },
		OnTaskDone: func(_ *Task, _ time.Duration, err error) { failed = err },
	}
	if _, err := crew.Kickoff(context.Background()); !errors.Is(err, reject) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if !errors.Is(failed, reject) {
		t.Errorf("OnTaskDone should see the error, got %v", failed)
	}
	if model.Calls() != 1 {
		t.Errorf("second task must not run, got %d calls", model.Calls())
	}
}

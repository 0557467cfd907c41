package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Crew runs its tasks strictly in order. A failing task stops the crew.
type Crew struct {
	Tasks []*Task

	// AfterTask, when set, runs after each successful task and may reject its
	// output by returning an error.
	AfterTask func(ctx context.Context, t *Task) error
	// OnTaskDone observes every task, successful or not.
	OnTaskDone func(t *Task, elapsed time.Duration, err error)
}

// Kickoff runs every task and returns the output of the last one.
func (c *Crew) Kickoff(ctx context.Context) (string, error) {
	var last string
	for i, t := range c.Tasks {
		if t.Agent == nil {
			return "", fmt.Errorf("task %s has no agent", t.Name)
		}
		slog.InfoContext(ctx, "starting task",
			"component", "crew",
			"task", t.Name,
			"step", fmt.Sprintf("%d/%d", i+1, len(c.Tasks)),
			"agent", t.Agent.Role)

		start := time.Now()
		_, err := t.Agent.Execute(ctx, t)
		if err == nil && c.AfterTask != nil {
			err = c.AfterTask(ctx, t)
		}
		if c.OnTaskDone != nil {
			c.OnTaskDone(t, time.Since(start), err)
		}
		if err != nil {
			return "", err
		}
		last = t.Output
	}
	return last, nil
}

package orchestrator

import (
	"context"
)

// Task is the work handed to an Executor once a query has been admitted.
type Task struct {
	ExecutionID string
	Intent      string
	SkillID     string
	Model       string
	Context     map[string]any
}

// Output is what an Executor produced. An empty Model means the routed model
// was used.
type Output struct {
	Value any
	Cost  float64
	Model string
}

// Executor runs a skill on a backend. It is the only unbounded call in an
// orchestration; implementations should honour ctx.
type Executor interface {
	Execute(ctx context.Context, task Task) (Output, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task Task) (Output, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (Output, error) {
	return f(ctx, task)
}

// EchoExecutor is the local backend. It performs no work and reports the
// routing decision back as its output at zero cost.
type EchoExecutor struct{}

// Execute implements Executor.
func (EchoExecutor) Execute(ctx context.Context, task Task) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	return Output{
		Value: map[string]any{
			"skill":   task.SkillID,
			"model":   task.Model,
			"context": task.Context,
			"success": true,
		},
		Model: task.Model,
	}, nil
}

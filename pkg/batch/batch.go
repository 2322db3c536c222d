// Package batch analyzes several inputs concurrently on a bounded worker
// pool.
package batch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/analysis"
	"github.com/japaniel/bsdetect/pkg/logging"
)

// Task is one input to analyze. Name identifies it in outcomes and logs.
type Task struct {
	Name string
	Run  func(ctx context.Context) (*analysis.Result, error)
}

// Outcome pairs a task with its result or error.
type Outcome struct {
	Name     string
	Result   *analysis.Result
	Err      error
	Duration time.Duration
}

var errNotRun = errors.New("task not run")

// Runner executes tasks with at most Workers in flight.
type Runner struct {
	Workers int
	Logger  *zap.Logger
}

// Run executes every task and returns outcomes in task order. Tasks left
// unstarted when ctx ends report ctx.Err().
func (r *Runner) Run(ctx context.Context, tasks []Task) []Outcome {
	logger := logging.OrNop(r.Logger)
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	workers := r.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	pool := NewWorkerPool(workers, len(tasks))
	pool.OnFailure(func(err error) {
		logger.Warn("batch task failed", zap.Error(err))
	})
	pool.Start(ctx)

	for i, task := range tasks {
		i, task := i, task
		outcomes[i] = Outcome{Name: task.Name, Err: errNotRun}
		job := func(ctx context.Context) error {
			start := time.Now()
			res, err := task.Run(ctx)
			outcomes[i] = Outcome{Name: task.Name, Result: res, Err: err, Duration: time.Since(start)}
			if err != nil {
				return &TaskError{Name: task.Name, Err: err}
			}
			logger.Debug("batch task done",
				zap.String("task", task.Name),
				zap.Int("score", res.Score),
				zap.Duration("took", outcomes[i].Duration))
			return nil
		}
		if err := pool.Submit(job); err != nil {
			outcomes[i].Err = err
		}
	}
	pool.Close()

	for i := range outcomes {
		if outcomes[i].Err == errNotRun {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
			}
		}
	}
	return outcomes
}

// TaskError names the task that failed.
type TaskError struct {
	Name string
	Err  error
}

func (e *TaskError) Error() string { return e.Name + ": " + e.Err.Error() }

func (e *TaskError) Unwrap() error { return e.Err }

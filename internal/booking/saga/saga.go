// Package saga runs an ordered list of steps across systems that cannot
// share a transaction. When a step fails, the compensations of every
// completed step run in strict reverse order, best effort.
package saga

import (
	"context"
	"fmt"

	"estatebot_backend/platform/logger"
)

// Step pairs an action with the compensation that undoes it. Compensate may
// be nil for read-only steps.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Error reports which step failed and carries the step's error.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("saga step %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner executes sagas and logs compensation outcomes.
type Runner struct {
	log *logger.Logger
}

// NewRunner creates a saga runner.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{log: log}
}

// Execute runs the steps in order. On failure it compensates the completed
// steps in reverse and returns an *Error naming the failed step. A
// compensation failure is logged and does not stop the remaining
// compensations: reporting the original error matters more.
func (r *Runner) Execute(ctx context.Context, name string, steps []Step) error {
	completed := make([]Step, 0, len(steps))

	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			r.log.Warn("saga step failed, compensating",
				"saga", name,
				"step", step.Name,
				"completed_steps", len(completed),
				"error", err.Error(),
			)
			r.compensate(ctx, name, completed)
			return &Error{Step: step.Name, Err: err}
		}
		completed = append(completed, step)
	}

	return nil
}

// compensate undoes completed steps newest-first. It runs on a context
// detached from the caller's so an aborted request cannot halt cleanup.
func (r *Runner) compensate(ctx context.Context, name string, completed []Step) {
	detached := context.WithoutCancel(ctx)

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(detached); err != nil {
			r.log.OrphanedResource(name, step.Name, err)
		}
	}
}

// Package pipeline drives a job through the state machine: validation,
// decoding, transforming and encoding, with hooks and progress around every
// phase.
package pipeline

import (
	"context"
	"time"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// Chain executes a sequence of edit Steps.
type Chain struct {
	steps []core.Step
}

// NewChain returns a Chain running steps in order.
func NewChain(steps ...core.Step) *Chain { return &Chain{steps: steps} }

// Use appends a step to the chain.  Returns the same Chain for chaining.
func (c *Chain) Use(s ...core.Step) *Chain {
	c.steps = append(c.steps, s...)
	return c
}

// Len is the number of steps.
func (c *Chain) Len() int { return len(c.steps) }

// Checkpoint is called before each step.  A non-nil error stops the chain.
type Checkpoint func(done, total int, step string) error

// Run applies every step to can.  ctx is checked before each step; a step
// that has started always runs to completion.  It returns the final value
// and the time spent in each step.
func (c *Chain) Run(ctx context.Context, can core.Canonical, check Checkpoint) (core.Canonical, map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(c.steps))
	current := can

	for i, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return nil, timings, apperrors.Wrap(apperrors.KindCancelled, step.Name(), err)
		}
		if check != nil {
			if err := check(i, len(c.steps), step.Name()); err != nil {
				return nil, timings, err
			}
		}

		start := time.Now()
		result, err := step.Apply(context.WithoutCancel(ctx), current)
		timings[step.Name()] += time.Since(start)
		if err != nil {
			return nil, timings, apperrors.Wrap(apperrors.KindInternal, step.Name(), err)
		}
		current = result
	}
	return current, timings, nil
}

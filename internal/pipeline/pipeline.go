package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/wordcrawl/internal/model"
)

// Step is one stage of a Pipeline.
// Steps are executed in sequence, each receiving the report filled by the
// steps before it.
//
// Steps are an interface rather than plain functions because they carry
// their own dependencies (the coordinator, the archive, the collectors) and
// a Name used in logs.
type Step interface {
	// Do executes the step. Non-critical problems should be recorded in the
	// report and return nil.
	Do(ctx context.Context, report *model.RunReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in sequence.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError makes the pipeline run the remaining steps after a
// failure. The first error is still recorded in the report and returned
// from Execute.
//
// DefaultPipeline enables it: a crawl that found no seeds or hit its
// deadline still produces a report worth archiving, and the metrics of a
// failed run are as useful as those of a successful one.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step on report.
//
// Cancellation is checked before each step; a cancelled pipeline marks the
// report TimedOut and returns ctx.Err(). A failing step records its error in
// the report and, unless continueOnError is set, stops the pipeline.
// With continueOnError the first step error is returned after all steps ran.
func (p *Pipeline) Execute(ctx context.Context, report *model.RunReport) error {
	var firstErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.TimedOut = true
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"run_id", report.ID,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run_id", report.ID,
				"error", err,
			)
			if report.Error == "" {
				report.Error = err.Error()
			}
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

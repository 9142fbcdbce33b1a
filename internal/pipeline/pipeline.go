package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/spoilerguard/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// accumulated by the previous ones.
type Step interface {
	// Do executes the step. Non-critical problems should be recorded in
	// the report and return nil.
	Do(ctx context.Context, report *model.ScanReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, report *model.ScanReport) error
}

// Do implements Step.
func (s StepFunc) Do(ctx context.Context, report *model.ScanReport) error {
	return s.Fn(ctx, report)
}

// Name implements Step.
func (s StepFunc) Name() string {
	return s.StepName
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails.
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

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded in the report, but subsequent steps still execute.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
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

// StepError is a detection step failure as recorded in a ScanReport.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Execute runs the steps over one page in order. Cancellation is checked
// before each step; redactions made by earlier steps stay in place.
//
// A failed step is listed in report.FailedSteps. The report keeps the
// first failure, so a classifier outage cannot hide a keyword error. With
// continueOnError the remaining detectors still run and Execute returns
// nil.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("scan cancelled",
				"step", step.Name(),
				"page", report.PageURL,
				"redactions", len(report.Redactions),
				"reason", err,
			)
			report.TimedOut = true
			return err
		}

		before := len(report.Redactions)
		err := step.Do(ctx, report)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
		if err == nil {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"page", report.PageURL,
				"redacted", len(report.Redactions)-before,
			)
			continue
		}

		stepErr := &StepError{Step: step.Name(), Err: err}
		p.logger.Error("step failed",
			"step", step.Name(),
			"page", report.PageURL,
			"redacted", len(report.Redactions)-before,
			"error", err,
		)
		report.FailedSteps = append(report.FailedSteps, step.Name())
		if report.Error == nil {
			report.Error = stepErr
			report.ErrorMessage = stepErr.Error()
		}
		if !p.continueOnError {
			return stepErr
		}
	}
	return nil
}

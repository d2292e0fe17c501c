package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wellcareplus/curedeploy/pkg/journal"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// Step is one unit of the provisioning sequence.
type Step interface {
	// Name is the stable identifier recorded in the journal.
	Name() string

	// Run performs the step. Steps are written to be safe to re-run.
	Run(ctx context.Context) error
}

// Checker is implemented by steps that can probe whether their work is
// already in place, letting the runner skip them with a note.
type Checker interface {
	AlreadyDone(ctx context.Context) (done bool, note string, err error)
}

// Runner executes steps strictly in order with a stop-on-first-error
// policy. There is no rollback: a failed run leaves the host partially
// provisioned and the journal pointing at the failed step.
type Runner struct {
	Journal     *journal.Journal
	Fingerprint string

	// Resume skips steps the journal records as completed under the same
	// fingerprint.
	Resume bool

	// Skip names steps to skip unconditionally.
	Skip map[string]bool
}

// Run executes the steps. The returned error is the first step failure,
// wrapped with the step name.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	runID := uuid.New().String()
	logger := log.WithRunID(runID)

	run := &journal.Run{
		ID:          runID,
		Fingerprint: r.Fingerprint,
		StartedAt:   time.Now(),
	}
	if err := r.Journal.BeginRun(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	logger.Info().Int("steps", len(steps)).Msg("provisioning run started")

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return r.fail(run, step.Name(), err)
		}

		stepLog := logger.With().Str("step", step.Name()).Logger()

		if r.Skip[step.Name()] {
			stepLog.Warn().Msg("step skipped by request")
			r.record(&journal.StepRecord{
				Name:        step.Name(),
				RunID:       runID,
				Fingerprint: r.Fingerprint,
				State:       journal.StepSkipped,
				StartedAt:   time.Now(),
				Note:        "skipped by --skip-steps",
			})
			continue
		}

		if r.Resume {
			done, err := r.Journal.Completed(step.Name(), r.Fingerprint)
			if err != nil {
				return r.fail(run, step.Name(), err)
			}
			if done {
				stepLog.Info().Msg("step already completed, resuming past it")
				continue
			}
		}

		if checker, ok := step.(Checker); ok {
			done, note, err := checker.AlreadyDone(ctx)
			if err != nil {
				return r.fail(run, step.Name(), err)
			}
			if done {
				stepLog.Info().Str("note", note).Msg("step already satisfied")
				r.record(&journal.StepRecord{
					Name:        step.Name(),
					RunID:       runID,
					Fingerprint: r.Fingerprint,
					State:       journal.StepCompleted,
					StartedAt:   time.Now(),
					Note:        note,
				})
				continue
			}
		}

		started := time.Now()
		r.record(&journal.StepRecord{
			Name:        step.Name(),
			RunID:       runID,
			Fingerprint: r.Fingerprint,
			State:       journal.StepRunning,
			StartedAt:   started,
		})

		stepLog.Info().Int("index", i+1).Int("total", len(steps)).Msg("step started")
		err := step.Run(ctx)
		finished := time.Now()
		duration := finished.Sub(started)

		rec := &journal.StepRecord{
			Name:        step.Name(),
			RunID:       runID,
			Fingerprint: r.Fingerprint,
			StartedAt:   started,
			FinishedAt:  &finished,
			Duration:    duration.Round(time.Millisecond).String(),
		}

		if err != nil {
			rec.State = journal.StepFailed
			rec.Error = err.Error()
			r.record(rec)
			stepLog.Error().Err(err).Dur("duration", duration).Msg("step failed")
			return r.fail(run, step.Name(), fmt.Errorf("step %s: %w", step.Name(), err))
		}

		rec.State = journal.StepCompleted
		r.record(rec)
		stepLog.Info().Dur("duration", duration).Msg("step completed")
	}

	now := time.Now()
	run.FinishedAt = &now
	if err := r.Journal.FinishRun(run); err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}

	logger.Info().Msg("provisioning run completed")
	return nil
}

func (r *Runner) fail(run *journal.Run, stepName string, err error) error {
	now := time.Now()
	run.FinishedAt = &now
	run.Failed = true
	run.FailedStep = stepName
	if jerr := r.Journal.FinishRun(run); jerr != nil {
		logger := log.WithComponent("pipeline")
		logger.Error().Err(jerr).Msg("failed to record run failure")
	}
	return err
}

func (r *Runner) record(rec *journal.StepRecord) {
	if err := r.Journal.RecordStep(rec); err != nil {
		logger := log.WithComponent("pipeline")
		logger.Error().Err(err).Str("step", rec.Name).Msg("failed to record step")
	}
}

package saga

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// TransitionFunc observes every step status change of a run.
type TransitionFunc func(index int, record domain.StepRecord)

// RunSpec describes one execution of an ordered step list.
type RunSpec struct {
	Steps []Step
	Scope *Scope
	// RetryAttempts is the number of extra attempts a failing required step gets.
	RetryAttempts int
	// Timeout bounds the whole run. Zero means unbounded.
	Timeout      time.Duration
	OnTransition TransitionFunc
}

// Outcome summarizes a finished run.
type Outcome struct {
	Records   []domain.StepRecord
	Completed []string
	Failed    []string
	Skipped   []string
	// Aborted is the id of the required step that stopped the run, if any.
	Aborted string
}

// Options tune the runner. Zero values fall back to defaults.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Runner executes steps sequentially with a single failure policy.
type Runner struct {
	bus     ports.EventBus
	journal ports.StepJournal
	opts    Options
	log     zerolog.Logger
}

// NewRunner creates a step runner. bus and journal may be nil.
func NewRunner(bus ports.EventBus, journal ports.StepJournal, opts Options, baseLogger *zerolog.Logger) *Runner {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	return &Runner{
		bus:     bus,
		journal: journal,
		opts:    opts,
		log:     baseLogger.With().Str("component", "step_runner").Logger(),
	}
}

// Run executes spec.Steps in order. Steps never run in parallel: later steps read
// scope values written by earlier ones. The returned error is a *StepError when a
// required step failed; optional failures are only recorded in the Outcome.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*Outcome, error) {
	scope := spec.Scope
	log := r.log.With().
		Str("run_id", scope.RunID).
		Str("run", scope.RunName).
		Str("kind", string(scope.Kind)).
		Logger()

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	out := &Outcome{Records: make([]domain.StepRecord, len(spec.Steps))}
	for i, step := range spec.Steps {
		out.Records[i] = domain.StepRecord{
			ID:       step.ID,
			Name:     step.Name,
			Required: step.Required,
			Status:   domain.StepPending,
		}
	}

	for i, step := range spec.Steps {
		rec := &out.Records[i]
		stepLog := log.With().Str("step", step.ID).Int("index", i).Logger()

		// 1. A cancelled or timed-out run cannot make progress.
		if err := ctx.Err(); err != nil {
			rec.StartedAt = time.Now().UTC()
			r.fail(ctx, spec, i, rec, fmt.Errorf("run interrupted before step: %w", err))
			out.Failed = append(out.Failed, step.ID)
			out.Aborted = step.ID
			stepLog.Error().Err(err).Msg("Run interrupted")
			return out, &StepError{StepID: step.ID, StepName: step.Name, Err: err}
		}

		// 2. Guard
		if step.Guard != nil && !r.evalGuard(step, scope, stepLog) {
			rec.Status = domain.StepSkipped
			rec.CompletedAt = time.Now().UTC()
			r.transition(ctx, spec, i, *rec)
			out.Skipped = append(out.Skipped, step.ID)
			stepLog.Debug().Msg("Guard returned false, skipping step")
			continue
		}

		// 3. Execute with the retry policy
		rec.Status = domain.StepRunning
		rec.StartedAt = time.Now().UTC()
		rec.Attempts = 1
		r.transition(ctx, spec, i, *rec)

		maxTries := 1
		if step.Required && spec.RetryAttempts > 0 {
			maxTries += spec.RetryAttempts
		}
		attempts, err := r.execute(ctx, spec, i, rec, step, maxTries, stepLog)
		rec.Attempts = attempts

		if err != nil {
			r.fail(ctx, spec, i, rec, err)
			out.Failed = append(out.Failed, step.ID)
			if step.Required {
				out.Aborted = step.ID
				stepLog.Error().Err(err).Int("attempts", attempts).Msg("Required step failed, aborting run")
				return out, &StepError{StepID: step.ID, StepName: step.Name, Attempts: attempts, Err: err}
			}
			stepLog.Warn().Err(err).Msg("Optional step failed, continuing")
			continue
		}

		rec.Status = domain.StepCompleted
		rec.CompletedAt = time.Now().UTC()
		r.transition(ctx, spec, i, *rec)
		out.Completed = append(out.Completed, step.ID)
		stepLog.Debug().Int("attempts", attempts).Msg("Step completed")
	}

	return out, nil
}

// execute runs the bound event publication and the action, retrying with
// exponential backoff up to maxTries. Domain errors and per-step timeouts are
// never retried, so two attempts of a step never overlap.
func (r *Runner) execute(ctx context.Context, spec RunSpec, index int, rec *domain.StepRecord, step Step, maxTries int, log zerolog.Logger) (int, error) {
	attempts := 0
	var lastErr error

	operation := func() (struct{}, error) {
		attempts++
		if attempts > 1 {
			rec.Attempts = attempts
			r.transition(ctx, spec, index, *rec)
			log.Info().Int("attempt", attempts).Msg("Retrying step")
		}

		lastErr = r.attempt(ctx, step, spec.Scope)
		if lastErr == nil {
			return struct{}{}, nil
		}
		if domain.CodeOf(lastErr) != "" || ctx.Err() != nil || errors.Is(lastErr, ErrStepTimeout) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	}

	if maxTries <= 1 {
		_, _ = operation()
		return attempts, lastErr
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxInterval = r.opts.MaxBackoff

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxTries)),
	)
	if err == nil {
		return attempts, nil
	}
	if lastErr == nil {
		// Retry gave up before the operation ran again, e.g. the run timed out.
		lastErr = err
	}
	return attempts, lastErr
}

// attempt is one try: publish the bound event, then run the action under the
// per-step timeout. Panics are converted to errors.
func (r *Runner) attempt(ctx context.Context, step Step, scope *Scope) (err error) {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("step %s panicked: %v", step.ID, rec)
		}
	}()

	if step.EventType != "" && r.bus != nil {
		if err := r.bus.Publish(ctx, r.boundEvent(step, scope)); err != nil {
			return fmt.Errorf("publish %s: %w", step.EventType, err)
		}
	}

	if step.Action == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("step %s panicked: %v", step.ID, rec)
			}
		}()
		done <- step.Action(ctx, scope)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && step.Timeout > 0 {
			return fmt.Errorf("%w: %s after %s: %w", ErrStepTimeout, step.ID, step.Timeout, ctx.Err())
		}
		return ctx.Err()
	}
}

func (r *Runner) boundEvent(step Step, scope *Scope) domain.Event {
	aggType := step.AggregateType
	if aggType == "" {
		aggType = scope.AggregateType
	}
	aggID := scope.AggregateID
	if aggID == "" {
		aggID = scope.RunID
	}

	evt := domain.NewEvent(step.EventType, aggID, aggType, scope.Payload.With("stepId", step.ID))
	if scope.CorrelationID != "" {
		evt.Metadata.CorrelationID = scope.CorrelationID
	}
	switch scope.Kind {
	case domain.RunKindWorkflow:
		evt.Metadata.WorkflowID = scope.RunID
	case domain.RunKindProcess:
		evt.Metadata.ProcessID = scope.RunID
	}
	return evt
}

func (r *Runner) evalGuard(step Step, scope *Scope, log zerolog.Logger) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("Guard panicked, treating as false")
			ok = false
		}
	}()
	return step.Guard(scope)
}

func (r *Runner) fail(ctx context.Context, spec RunSpec, index int, rec *domain.StepRecord, err error) {
	rec.Status = domain.StepFailed
	rec.Error = err.Error()
	rec.CompletedAt = time.Now().UTC()
	r.transition(ctx, spec, index, *rec)
}

// transition notifies the owner and appends to the journal. Journal failures
// never affect the run.
func (r *Runner) transition(ctx context.Context, spec RunSpec, index int, rec domain.StepRecord) {
	if spec.OnTransition != nil {
		spec.OnTransition(index, rec)
	}
	if r.journal == nil {
		return
	}

	entry := domain.StepTransition{
		RunID:      spec.Scope.RunID,
		RunKind:    spec.Scope.Kind,
		RunName:    spec.Scope.RunName,
		StepID:     rec.ID,
		StepIndex:  index,
		Status:     rec.Status,
		Attempt:    rec.Attempts,
		Error:      rec.Error,
		OccurredAt: time.Now().UTC(),
	}
	// The run context may already be cancelled; the audit write still matters.
	if err := r.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		r.log.Warn().Err(err).
			Str("run_id", entry.RunID).
			Str("step", entry.StepID).
			Msg("Failed to append step transition to journal")
	}
}

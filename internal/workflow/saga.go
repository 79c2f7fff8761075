package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// PartialFailure reports a multi-step change that failed after some steps
// had already been applied, and whether those steps were undone.
type PartialFailure struct {
	Step          string
	Err           error
	Applied       int  // steps completed before the failure
	Compensated   bool // every applied step was undone, or none was applied
	CompensateErr error
}

func (e *PartialFailure) Error() string {
	if e.Applied == 0 {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	if e.Compensated {
		return fmt.Sprintf("%s: %v (earlier steps rolled back)", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v (rollback failed: %v)", e.Step, e.Err, e.CompensateErr)
}

func (e *PartialFailure) Unwrap() error { return e.Err }

// saga records the undo action of every completed step so a failure later
// in the sequence can restore the previous state.
type saga struct {
	steps []sagaStep
}

type sagaStep struct {
	name string
	undo func(ctx context.Context) error
}

func (s *saga) done(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, undo: undo})
}

// fail runs the undo actions in reverse order and describes the outcome.
// Compensation runs even if ctx was canceled.
func (s *saga) fail(ctx context.Context, step string, err error) *PartialFailure {
	pf := &PartialFailure{Step: step, Err: err, Applied: len(s.steps)}
	if len(s.steps) == 0 {
		pf.Compensated = true
		return pf
	}

	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		st := s.steps[i]
		if uerr := st.undo(ctx); uerr != nil {
			slog.Error("compensation failed", "step", st.name, "error", uerr)
			errs = append(errs, fmt.Errorf("undo %s: %w", st.name, uerr))
		}
	}

	pf.CompensateErr = errors.Join(errs...)
	pf.Compensated = pf.CompensateErr == nil
	return pf
}

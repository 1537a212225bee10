package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SubscribeProgress returns a channel of progress updates for an in-flight
// run. The current snapshot is delivered immediately and the channel closes
// when the run reaches a terminal state.
func (s *Service) SubscribeProgress(runID uuid.UUID) (<-chan RunProgress, error) {
	s.mu.RLock()
	ar, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: run not found: %s", ErrNotFound, runID)
	}

	ch := make(chan RunProgress, 10)

	ar.mu.Lock()
	select {
	case <-ar.Done:
		// Already terminal: deliver the final snapshot and close.
		ch <- ar.progress
		close(ch)
	default:
		ar.listeners = append(ar.listeners, ch)
		select {
		case ch <- ar.progress:
		default:
		}
	}
	ar.mu.Unlock()

	return ch, nil
}

// GetRunProgress returns the current progress snapshot without blocking.
func (s *Service) GetRunProgress(runID uuid.UUID) (RunProgress, error) {
	s.mu.RLock()
	ar, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return RunProgress{}, fmt.Errorf("%w: run not found: %s", ErrNotFound, runID)
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.progress, nil
}

// CancelRun cancels an in-flight run. The run ends failed with a
// cancellation reason and no verdicts are persisted.
func (s *Service) CancelRun(runID uuid.UUID) error {
	s.mu.RLock()
	ar, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: run not found: %s", ErrNotFound, runID)
	}

	ar.Cancel()
	return nil
}

// WaitForRun blocks until the run reaches a terminal state or ctx ends,
// then returns the stored run.
func (s *Service) WaitForRun(ctx context.Context, runID uuid.UUID) (Run, error) {
	s.mu.RLock()
	ar, ok := s.runs[runID]
	s.mu.RUnlock()

	if ok {
		select {
		case <-ar.Done:
		case <-ctx.Done():
			return Run{}, ctx.Err()
		}
	}

	return s.store.GetRun(ctx, runID)
}

// GetRun returns the stored run.
func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (Run, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRuns returns all runs for a template, newest first.
func (s *Service) ListRuns(ctx context.Context, templateID uuid.UUID) ([]Run, error) {
	return s.store.ListRuns(ctx, templateID)
}

// RunResults bundles a completed run with its verdicts and summary.
type RunResults struct {
	Run      Run           `json:"run"`
	Verdicts []CellVerdict `json:"verdicts"`
	Summary  RunSummary    `json:"summary"`
}

// Results returns the verdicts of a completed run. Pending and running runs
// have no results yet; failed runs never will.
func (s *Service) Results(ctx context.Context, runID uuid.UUID) (RunResults, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return RunResults{}, err
	}
	switch run.Status {
	case RunCompleted:
	case RunFailed:
		return RunResults{}, fmt.Errorf("run %s failed: %s", runID, run.Reason)
	default:
		return RunResults{}, fmt.Errorf("%w: run %s is %s", ErrRunNotTerminal, runID, run.Status)
	}

	verdicts, err := s.store.RunVerdicts(ctx, runID)
	if err != nil {
		return RunResults{}, err
	}
	for _, v := range verdicts {
		switch v.Outcome {
		case OutcomePass, OutcomeFail, OutcomeSkipped:
		default:
			return RunResults{}, fmt.Errorf("%w: %q on run %s", ErrUnknownVerdict, v.Outcome, runID)
		}
	}

	return RunResults{Run: run, Verdicts: verdicts, Summary: Summarize(verdicts)}, nil
}

// ResultsPage returns the verdicts of a completed run restricted to the
// half-open row range [fromRow, toRow). A toRow of zero or less means no
// upper bound. The summary still covers the whole run so totals stay
// stable across pages.
func (s *Service) ResultsPage(ctx context.Context, runID uuid.UUID, fromRow, toRow int) (RunResults, error) {
	if fromRow < 0 {
		return RunResults{}, fmt.Errorf("fromRow must not be negative, got %d", fromRow)
	}
	if toRow > 0 && toRow < fromRow {
		return RunResults{}, fmt.Errorf("toRow %d is before fromRow %d", toRow, fromRow)
	}

	results, err := s.Results(ctx, runID)
	if err != nil {
		return RunResults{}, err
	}

	page := make([]CellVerdict, 0, len(results.Verdicts))
	for _, v := range results.Verdicts {
		if v.Row < fromRow {
			continue
		}
		if toRow > 0 && v.Row >= toRow {
			continue
		}
		page = append(page, v)
	}
	results.Verdicts = page
	return results, nil
}

// Chain returns the full supersedes chain containing runID, oldest first.
func (s *Service) Chain(ctx context.Context, runID uuid.UUID) ([]Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Walk back to the root.
	chain := []Run{run}
	for chain[0].Supersedes != uuid.Nil {
		prev, err := s.store.GetRun(ctx, chain[0].Supersedes)
		if err != nil {
			return nil, fmt.Errorf("walk chain: %w", err)
		}
		chain = append([]Run{prev}, chain...)
	}

	// Walk forward to the newest successor.
	for {
		next, ok, err := s.store.FindSuccessor(ctx, chain[len(chain)-1].ID)
		if err != nil {
			return nil, fmt.Errorf("walk chain: %w", err)
		}
		if !ok {
			break
		}
		chain = append(chain, next)
	}

	return chain, nil
}

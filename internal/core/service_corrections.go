package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CorrectionInput is one replacement value submitted against a run.
type CorrectionInput struct {
	Row      int       `json:"row"`
	ColumnID uuid.UUID `json:"columnId"`
	Value    string    `json:"value"`
}

// AddCorrections records replacement values against a completed run. The
// run itself is untouched; corrections take effect on the next Revalidate.
// A correction must address a cell the run actually validated.
func (s *Service) AddCorrections(ctx context.Context, runID uuid.UUID, inputs []CorrectionInput, author string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no corrections given")
	}

	run, tmpl, grid, err := s.correctableRun(ctx, runID)
	if err != nil {
		return err
	}

	columns := make(map[uuid.UUID]struct{}, len(tmpl.Columns))
	for _, c := range tmpl.Columns {
		columns[c.ID] = struct{}{}
	}

	now := time.Now().UTC()
	corrections := make([]Correction, 0, len(inputs))
	for _, in := range inputs {
		if _, ok := columns[in.ColumnID]; !ok {
			return fmt.Errorf("%w: run %s has no verdict for column %s", ErrUnknownVerdict, run.ID, in.ColumnID)
		}
		if in.Row < 0 || in.Row >= len(grid.Rows) {
			return fmt.Errorf("%w: run %s has no verdict for row %d", ErrUnknownVerdict, run.ID, in.Row)
		}
		corrections = append(corrections, Correction{
			RunID:     run.ID,
			Row:       in.Row,
			ColumnID:  in.ColumnID,
			Value:     in.Value,
			Author:    author,
			CreatedAt: now,
		})
	}

	if err := s.store.SaveCorrections(ctx, corrections); err != nil {
		return fmt.Errorf("save corrections: %w", err)
	}
	return nil
}

// Revalidate applies a run's corrections to its grid and starts a new run
// over the corrected data. The new run supersedes the old one; the old run
// and its verdicts remain readable forever.
func (s *Service) Revalidate(ctx context.Context, runID uuid.UUID) (Run, error) {
	prior, tmpl, grid, err := s.correctableRun(ctx, runID)
	if err != nil {
		return Run{}, err
	}

	corrections, err := s.store.RunCorrections(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	if len(corrections) == 0 {
		return Run{}, fmt.Errorf("run %s has no corrections to apply", runID)
	}

	// Re-validation uses the template as it stands now, so rule fixes made
	// after the original run also take effect.
	compiled, err := CompileTemplate(tmpl, s.catalog)
	if err != nil {
		return Run{}, err
	}

	corrected := grid.ApplyCorrections(corrections, columnIndex(compiled, grid))

	run := Run{
		ID:          uuid.New(),
		TemplateID:  prior.TemplateID,
		Owner:       prior.Owner,
		FileName:    prior.FileName,
		Fingerprint: gridFingerprint(corrected),
		Sheet:       prior.Sheet,
		Status:      RunPending,
		Supersedes:  prior.ID,
		CreatedAt:   time.Now().UTC(),
	}

	return s.launch(ctx, run, compiled, func(context.Context) (*Grid, error) {
		return corrected, nil
	})
}

// CorrectedGrid returns the run's grid with its corrections applied, for
// download. Unlike Revalidate it is allowed on superseded runs.
func (s *Service) CorrectedGrid(ctx context.Context, runID uuid.UUID) (*Grid, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != RunCompleted {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunNotTerminal, runID, run.Status)
	}

	grid, err := s.store.GetGrid(ctx, runID)
	if err != nil {
		return nil, err
	}
	corrections, err := s.store.RunCorrections(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(corrections) == 0 {
		return grid, nil
	}

	tmpl, err := s.store.GetTemplate(ctx, run.TemplateID)
	if err != nil {
		return nil, err
	}
	compiled, err := CompileTemplate(tmpl, s.catalog)
	if err != nil {
		return nil, err
	}

	return grid.ApplyCorrections(corrections, columnIndex(compiled, grid)), nil
}

// correctableRun loads a run and checks it can accept corrections: it must
// be completed and must not already have a successor.
func (s *Service) correctableRun(ctx context.Context, runID uuid.UUID) (Run, Template, *Grid, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return Run{}, Template{}, nil, err
	}
	if run.Status != RunCompleted {
		return Run{}, Template{}, nil, fmt.Errorf("%w: run %s is %s", ErrRunNotTerminal, runID, run.Status)
	}
	if _, ok, err := s.store.FindSuccessor(ctx, runID); err != nil {
		return Run{}, Template{}, nil, err
	} else if ok {
		return Run{}, Template{}, nil, fmt.Errorf("%w: run %s", ErrRunSuperseded, runID)
	}

	tmpl, err := s.store.GetTemplate(ctx, run.TemplateID)
	if err != nil {
		return Run{}, Template{}, nil, err
	}
	grid, err := s.store.GetGrid(ctx, runID)
	if err != nil {
		return Run{}, Template{}, nil, err
	}
	return run, tmpl, grid, nil
}

// columnIndex maps template column IDs to file column indexes for a grid.
func columnIndex(compiled *CompiledTemplate, g *Grid) map[uuid.UUID]int {
	fileCol := matchColumns(compiled, g)
	m := make(map[uuid.UUID]int, len(compiled.Columns))
	for i, c := range compiled.Columns {
		if fileCol[i] >= 0 {
			m[c.ID] = fileCol[i]
		}
	}
	return m
}

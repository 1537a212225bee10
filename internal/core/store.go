package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the service depends on. The Postgres
// implementation lives in internal/store; tests use the in-memory one.
type Store interface {
	// Templates.
	CreateTemplate(ctx context.Context, t Template) error
	UpdateTemplate(ctx context.Context, t Template) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	GetTemplate(ctx context.Context, id uuid.UUID) (Template, error)
	ListTemplates(ctx context.Context, owner string) ([]Template, error)

	// Runs. CreateRun writes the pending row; SetRunStatus moves it through
	// the lifecycle; CompleteRun atomically stores the grid and the full
	// verdict set and marks the run completed. A run never ends up
	// completed with a partial verdict set.
	CreateRun(ctx context.Context, run Run) error
	SetRunStatus(ctx context.Context, id uuid.UUID, status RunStatus, reason string) error
	CompleteRun(ctx context.Context, id uuid.UUID, grid *Grid, verdicts []CellVerdict) error
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	ListRuns(ctx context.Context, templateID uuid.UUID) ([]Run, error)
	// FindSuccessor returns the run whose Supersedes points at id.
	FindSuccessor(ctx context.Context, id uuid.UUID) (Run, bool, error)

	// Run payloads.
	GetGrid(ctx context.Context, runID uuid.UUID) (*Grid, error)
	RunVerdicts(ctx context.Context, runID uuid.UUID) ([]CellVerdict, error)

	// Corrections.
	SaveCorrections(ctx context.Context, corrections []Correction) error
	RunCorrections(ctx context.Context, runID uuid.UUID) ([]Correction, error)

	// PurgeSupersededBefore deletes superseded runs (and their grids,
	// verdicts, and corrections) completed before the cutoff. Returns how
	// many runs were removed.
	PurgeSupersededBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

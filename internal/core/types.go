// Package core provides the business logic for tabular file validation.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of validating one cell against its column's rules.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeSkipped Outcome = "skipped"
)

// NoteMissingColumn marks verdicts synthesized for a template column that has
// no counterpart in the ingested file.
const NoteMissingColumn = "MissingColumn"

// CellVerdict is the outcome for one (row, column) pair within a run.
// Row is 0-based and stable within the run. FailedRules holds the IDs of
// every failing rule binding, in evaluation order, not just the first.
type CellVerdict struct {
	RunID    uuid.UUID `json:"runId"`
	Row      int       `json:"row"`
	ColumnID uuid.UUID `json:"columnId"`
	Column   string    `json:"column"`
	Outcome  Outcome   `json:"outcome"`

	FailedRules []uuid.UUID `json:"failedRules,omitempty"`
	Observed    string      `json:"observed,omitempty"`
	Message     string      `json:"message,omitempty"`
	Note        string      `json:"note,omitempty"`
}

// RunStatus is the lifecycle state of a Run.
// Transitions: pending -> running -> {completed | failed}.
// Per-cell rule failures never move a run to failed; only structural
// ingestion failures, configuration failures, or cancellation do.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one execution of the engine against one ingested file under one
// template. Re-validation after corrections creates a new Run linked back to
// the prior one via Supersedes; completed runs are never mutated in place.
type Run struct {
	ID          uuid.UUID  `json:"id"`
	TemplateID  uuid.UUID  `json:"templateId"`
	Owner       string     `json:"owner"`
	FileName    string     `json:"fileName"`
	Fingerprint string     `json:"fingerprint"` // SHA-256 of the raw file content
	Sheet       string     `json:"sheet,omitempty"`
	Status      RunStatus  `json:"status"`
	Reason      string     `json:"reason,omitempty"` // set when Status is failed
	Supersedes  uuid.UUID  `json:"supersedes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Correction is a manually supplied replacement value for a previously
// validated cell. Corrections never alter the run they reference; they seed
// the grid for the next run.
type Correction struct {
	RunID     uuid.UUID `json:"runId"`
	Row       int       `json:"row"`
	ColumnID  uuid.UUID `json:"columnId"`
	Value     string    `json:"value"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// RunPhase indicates the current stage of run processing.
type RunPhase string

const (
	PhaseStarting   RunPhase = "starting"
	PhaseReading    RunPhase = "reading"
	PhaseValidating RunPhase = "validating"
	PhasePersisting RunPhase = "persisting"
	PhaseComplete   RunPhase = "complete"
	PhaseFailed     RunPhase = "failed"
	PhaseCancelled  RunPhase = "cancelled"
)

// RunProgress represents the current state of an in-flight run.
type RunProgress struct {
	RunID      string   `json:"runId"`
	TemplateID string   `json:"templateId"`
	Phase      RunPhase `json:"phase"`
	FileName   string   `json:"fileName"`
	TotalRows  int      `json:"totalRows"`
	CurrentRow int      `json:"currentRow"`
	FailedRows int      `json:"failedRows"`
	Error      string   `json:"error,omitempty"` // non-empty if Phase is PhaseFailed
}

// Percent returns the progress as a percentage (0-100).
func (p RunProgress) Percent() int {
	if p.TotalRows <= 0 {
		return 0
	}
	return (p.CurrentRow * 100) / p.TotalRows
}

// RunSummary is the per-run roll-up returned alongside verdicts.
type RunSummary struct {
	Rows         int            `json:"rows"`
	Columns      int            `json:"columns"`
	FailedCells  int            `json:"failedCells"`
	PassedCells  int            `json:"passedCells"`
	SkippedCells int            `json:"skippedCells"`
	ByColumn     map[string]int `json:"byColumn,omitempty"` // column name -> failed cell count
}

// Summarize builds a RunSummary from a verdict set.
func Summarize(verdicts []CellVerdict) RunSummary {
	s := RunSummary{ByColumn: make(map[string]int)}
	cols := make(map[uuid.UUID]struct{})
	maxRow := -1
	for _, v := range verdicts {
		cols[v.ColumnID] = struct{}{}
		if v.Row > maxRow {
			maxRow = v.Row
		}
		switch v.Outcome {
		case OutcomeFail:
			s.FailedCells++
			s.ByColumn[v.Column]++
		case OutcomePass:
			s.PassedCells++
		case OutcomeSkipped:
			s.SkippedCells++
		}
	}
	s.Rows = maxRow + 1
	s.Columns = len(cols)
	return s
}

// ProgressCallback is called periodically while a run is processed.
type ProgressCallback func(RunProgress)

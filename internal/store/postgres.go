// Package store provides persistence for templates, runs, verdicts, and
// corrections: a PostgreSQL implementation for production and an in-memory
// one for tests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tabcheck/tabcheck/internal/core"
)

// Postgres implements core.Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ core.Store = (*Postgres)(nil)

// --- templates ---

func (s *Postgres) CreateTemplate(ctx context.Context, t core.Template) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO templates (id, name, owner, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, t.ID, t.Name, t.Owner, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		return insertColumns(ctx, tx, t)
	})
}

func (s *Postgres) UpdateTemplate(ctx context.Context, t core.Template) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE templates SET name = $2, updated_at = $3 WHERE id = $1
		`, t.ID, t.Name, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update template: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: template not found: %s", core.ErrNotFound, t.ID)
		}

		// Columns are replaced wholesale; rules cascade with them.
		if _, err := tx.Exec(ctx, `DELETE FROM template_columns WHERE template_id = $1`, t.ID); err != nil {
			return fmt.Errorf("clear columns: %w", err)
		}
		return insertColumns(ctx, tx, t)
	})
}

func insertColumns(ctx context.Context, tx pgx.Tx, t core.Template) error {
	for _, col := range t.Columns {
		_, err := tx.Exec(ctx, `
			INSERT INTO template_columns (id, template_id, name, position)
			VALUES ($1, $2, $3, $4)
		`, col.ID, t.ID, col.Name, col.Position)
		if err != nil {
			return fmt.Errorf("insert column %q: %w", col.Name, err)
		}
		for _, rule := range col.Rules {
			params, err := json.Marshal(rule.Params)
			if err != nil {
				return fmt.Errorf("marshal rule params: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO column_rules (id, column_id, rule_key, params, position)
				VALUES ($1, $2, $3, $4, $5)
			`, rule.ID, col.ID, rule.RuleKey, params, rule.Position)
			if err != nil {
				return fmt.Errorf("insert rule %q on column %q: %w", rule.RuleKey, col.Name, err)
			}
		}
	}
	return nil
}

func (s *Postgres) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: template not found: %s", core.ErrNotFound, id)
	}
	return nil
}

func (s *Postgres) GetTemplate(ctx context.Context, id uuid.UUID) (core.Template, error) {
	var t core.Template
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, owner, created_at, updated_at FROM templates WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Owner, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Template{}, fmt.Errorf("%w: template not found: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Template{}, fmt.Errorf("get template: %w", err)
	}

	if err := s.loadColumns(ctx, &t); err != nil {
		return core.Template{}, err
	}
	return t, nil
}

func (s *Postgres) loadColumns(ctx context.Context, t *core.Template) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, position FROM template_columns
		WHERE template_id = $1 ORDER BY position
	`, t.ID)
	if err != nil {
		return fmt.Errorf("load columns: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		var col core.Column
		if err := rows.Scan(&col.ID, &col.Name, &col.Position); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		byID[col.ID] = len(t.Columns)
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load columns: %w", err)
	}

	ruleRows, err := s.pool.Query(ctx, `
		SELECT r.id, r.column_id, r.rule_key, r.params, r.position
		FROM column_rules r
		JOIN template_columns c ON c.id = r.column_id
		WHERE c.template_id = $1
		ORDER BY r.position
	`, t.ID)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var (
			rule   core.ColumnRule
			colID  uuid.UUID
			params []byte
		)
		if err := ruleRows.Scan(&rule.ID, &colID, &rule.RuleKey, &params, &rule.Position); err != nil {
			return fmt.Errorf("scan rule: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &rule.Params); err != nil {
				return fmt.Errorf("unmarshal rule params: %w", err)
			}
		}
		if i, ok := byID[colID]; ok {
			t.Columns[i].Rules = append(t.Columns[i].Rules, rule)
		}
	}
	return ruleRows.Err()
}

func (s *Postgres) ListTemplates(ctx context.Context, owner string) ([]core.Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, owner, created_at, updated_at FROM templates
		WHERE $1 = '' OR owner = $1
		ORDER BY name
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []core.Template
	for rows.Next() {
		var t core.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Owner, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	for i := range out {
		if err := s.loadColumns(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// --- runs ---

func (s *Postgres) CreateRun(ctx context.Context, run core.Run) error {
	var supersedes any
	if run.Supersedes != uuid.Nil {
		supersedes = run.Supersedes
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO validation_runs
			(id, template_id, owner, file_name, fingerprint, sheet, status, reason, supersedes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, run.TemplateID, run.Owner, run.FileName, run.Fingerprint,
		run.Sheet, run.Status, run.Reason, supersedes, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Postgres) SetRunStatus(ctx context.Context, id uuid.UUID, status core.RunStatus, reason string) error {
	var completedAt any
	if status == core.RunCompleted || status == core.RunFailed {
		completedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE validation_runs
		SET status = $2, reason = $3, completed_at = COALESCE($4, completed_at)
		WHERE id = $1
	`, id, status, reason, completedAt)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: run not found: %s", core.ErrNotFound, id)
	}
	return nil
}

// CompleteRun stores the grid and the full verdict set and marks the run
// completed, all in one transaction. Verdicts go in with CopyFrom, which
// keeps million-cell runs fast.
func (s *Postgres) CompleteRun(ctx context.Context, id uuid.UUID, grid *core.Grid, verdicts []core.CellVerdict) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		headers, err := json.Marshal(grid.Headers)
		if err != nil {
			return fmt.Errorf("marshal headers: %w", err)
		}
		gridRows, err := json.Marshal(grid.Rows)
		if err != nil {
			return fmt.Errorf("marshal rows: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO run_grids (run_id, sheet, headers, rows) VALUES ($1, $2, $3, $4)
		`, id, grid.Sheet, headers, gridRows); err != nil {
			return fmt.Errorf("insert grid: %w", err)
		}

		// Verdicts arrive flattened in row order with columns in template
		// order inside each row. Persist that offset so reads can restore
		// the exact ordering.
		pos := make([]int, len(verdicts))
		rowStart := 0
		for i := range verdicts {
			if i > 0 && verdicts[i].Row != verdicts[i-1].Row {
				rowStart = i
			}
			pos[i] = i - rowStart
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"cell_verdicts"},
			[]string{"run_id", "row_index", "column_pos", "column_id", "column_name", "outcome", "failed_rules", "observed", "message", "note"},
			pgx.CopyFromSlice(len(verdicts), func(i int) ([]any, error) {
				v := verdicts[i]
				var failedRules any
				if len(v.FailedRules) > 0 {
					b, err := json.Marshal(v.FailedRules)
					if err != nil {
						return nil, err
					}
					failedRules = b
				}
				return []any{v.RunID, v.Row, pos[i], v.ColumnID, v.Column, v.Outcome, failedRules, v.Observed, v.Message, v.Note}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy verdicts: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE validation_runs
			SET status = $2, completed_at = $3
			WHERE id = $1 AND status IN ('pending', 'running')
		`, id, core.RunCompleted, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: run %s is not in flight", core.ErrNotFound, id)
		}
		return nil
	})
}

func (s *Postgres) GetRun(ctx context.Context, id uuid.UUID) (core.Run, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, `
		SELECT id, template_id, owner, file_name, fingerprint, sheet, status, reason, supersedes, created_at, completed_at
		FROM validation_runs WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Run{}, fmt.Errorf("%w: run not found: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Postgres) ListRuns(ctx context.Context, templateID uuid.UUID) ([]core.Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, template_id, owner, file_name, fingerprint, sheet, status, reason, supersedes, created_at, completed_at
		FROM validation_runs WHERE template_id = $1
		ORDER BY created_at DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Postgres) FindSuccessor(ctx context.Context, id uuid.UUID) (core.Run, bool, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, `
		SELECT id, template_id, owner, file_name, fingerprint, sheet, status, reason, supersedes, created_at, completed_at
		FROM validation_runs WHERE supersedes = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Run{}, false, nil
	}
	if err != nil {
		return core.Run{}, false, fmt.Errorf("find successor: %w", err)
	}
	return run, true, nil
}

func scanRun(row pgx.Row) (core.Run, error) {
	var (
		run        core.Run
		supersedes *uuid.UUID
	)
	err := row.Scan(&run.ID, &run.TemplateID, &run.Owner, &run.FileName, &run.Fingerprint,
		&run.Sheet, &run.Status, &run.Reason, &supersedes, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return core.Run{}, err
	}
	if supersedes != nil {
		run.Supersedes = *supersedes
	}
	return run, nil
}

// --- run payloads ---

func (s *Postgres) GetGrid(ctx context.Context, runID uuid.UUID) (*core.Grid, error) {
	var (
		g       core.Grid
		headers []byte
		rows    []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT sheet, headers, rows FROM run_grids WHERE run_id = $1
	`, runID).Scan(&g.Sheet, &headers, &rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no grid stored for run %s", core.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get grid: %w", err)
	}
	if err := json.Unmarshal(headers, &g.Headers); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	if err := json.Unmarshal(rows, &g.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	return &g, nil
}

func (s *Postgres) RunVerdicts(ctx context.Context, runID uuid.UUID) ([]core.CellVerdict, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, row_index, column_id, column_name, outcome, failed_rules, observed, message, note
		FROM cell_verdicts WHERE run_id = $1
		ORDER BY row_index, column_pos
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load verdicts: %w", err)
	}
	defer rows.Close()

	var out []core.CellVerdict
	for rows.Next() {
		var (
			v           core.CellVerdict
			failedRules []byte
		)
		if err := rows.Scan(&v.RunID, &v.Row, &v.ColumnID, &v.Column, &v.Outcome,
			&failedRules, &v.Observed, &v.Message, &v.Note); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		if len(failedRules) > 0 {
			if err := json.Unmarshal(failedRules, &v.FailedRules); err != nil {
				return nil, fmt.Errorf("unmarshal failed rules: %w", err)
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- corrections ---

func (s *Postgres) SaveCorrections(ctx context.Context, corrections []core.Correction) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, c := range corrections {
			_, err := tx.Exec(ctx, `
				INSERT INTO validation_corrections (run_id, row_index, column_id, value, author, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (run_id, row_index, column_id)
				DO UPDATE SET value = EXCLUDED.value, author = EXCLUDED.author, created_at = EXCLUDED.created_at
			`, c.RunID, c.Row, c.ColumnID, c.Value, c.Author, c.CreatedAt)
			if err != nil {
				return fmt.Errorf("save correction (row %d): %w", c.Row, err)
			}
		}
		return nil
	})
}

func (s *Postgres) RunCorrections(ctx context.Context, runID uuid.UUID) ([]core.Correction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, row_index, column_id, value, author, created_at
		FROM validation_corrections WHERE run_id = $1
		ORDER BY row_index, column_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load corrections: %w", err)
	}
	defer rows.Close()

	var out []core.Correction
	for rows.Next() {
		var c core.Correction
		if err := rows.Scan(&c.RunID, &c.Row, &c.ColumnID, &c.Value, &c.Author, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- retention ---

func (s *Postgres) PurgeSupersededBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM validation_runs r
		WHERE r.completed_at < $1
		  AND EXISTS (SELECT 1 FROM validation_runs n WHERE n.supersedes = r.id)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge superseded runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

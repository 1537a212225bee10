package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// progressInterval is how many rows pass between progress callbacks.
const progressInterval = 64

// Engine evaluates a compiled template against a grid, producing exactly one
// verdict per (row, template column) pair. Evaluation is pure: no I/O, no
// clock, no randomness, so the same grid and template always yield the same
// verdicts.
type Engine struct {
	// Workers caps row-level parallelism; 0 means one worker per CPU.
	Workers int
}

func NewEngine(workers int) *Engine {
	return &Engine{Workers: workers}
}

// RowProgress reports rows finished so far and how many of them had at
// least one failing cell.
type RowProgress func(rowsDone, rowsFailed int)

// Evaluate fans rows out across workers and fans results back in, flattened
// in row order (and column order within a row) regardless of completion
// order. On cancellation it returns ErrCancelled and no verdicts; partial
// results are never surfaced.
func (e *Engine) Evaluate(ctx context.Context, runID uuid.UUID, ct *CompiledTemplate, g *Grid, onRow RowProgress) ([]CellVerdict, error) {
	fileCol := matchColumns(ct, g)
	total := len(g.Rows)
	results := make([][]CellVerdict, total)

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	var (
		wg     sync.WaitGroup
		done   atomic.Int64
		failed atomic.Int64
	)
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				verdicts := evaluateRow(runID, ct, g, fileCol, row)
				results[row] = verdicts

				rowFailed := false
				for _, v := range verdicts {
					if v.Outcome == OutcomeFail {
						rowFailed = true
						break
					}
				}
				if rowFailed {
					failed.Add(1)
				}
				d := done.Add(1)
				if onRow != nil && (d%progressInterval == 0 || d == int64(total)) {
					onRow(int(d), int(failed.Load()))
				}
			}
		}()
	}

feed:
	for row := 0; row < total; row++ {
		select {
		case jobs <- row:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	out := make([]CellVerdict, 0, total*len(ct.Columns))
	for _, rowVerdicts := range results {
		out = append(out, rowVerdicts...)
	}
	return out, nil
}

// matchColumns maps each template column to its file column index, or -1
// when the file has no matching header. When two file headers normalize to
// the same name, the leftmost wins.
func matchColumns(ct *CompiledTemplate, g *Grid) []int {
	fileCol := make([]int, len(ct.Columns))
	for i := range fileCol {
		fileCol[i] = -1
	}
	for fi, header := range g.Headers {
		ti, ok := ct.MatchHeader(header)
		if ok && fileCol[ti] == -1 {
			fileCol[ti] = fi
		}
	}
	return fileCol
}

// evaluateRow produces one verdict per template column for the given row.
func evaluateRow(runID uuid.UUID, ct *CompiledTemplate, g *Grid, fileCol []int, row int) []CellVerdict {
	verdicts := make([]CellVerdict, 0, len(ct.Columns))
	for ci, col := range ct.Columns {
		v := CellVerdict{
			RunID:    runID,
			Row:      row,
			ColumnID: col.ID,
			Column:   col.Name,
		}

		if fileCol[ci] == -1 {
			v.Outcome = OutcomeSkipped
			v.Note = NoteMissingColumn
			verdicts = append(verdicts, v)
			continue
		}

		raw, _ := g.Cell(row, fileCol[ci])
		value := CleanValue(raw)
		empty := value == ""

		ran := 0
		for _, b := range col.Bindings {
			if empty && !b.AppliesToEmpty {
				continue
			}
			ran++
			if ok, msg := b.Eval(value); !ok {
				v.FailedRules = append(v.FailedRules, b.RuleID)
				if v.Message == "" {
					v.Message = msg
				}
			}
		}

		switch {
		case ran == 0:
			v.Outcome = OutcomeSkipped
		case len(v.FailedRules) > 0:
			v.Outcome = OutcomeFail
			v.Observed = value
		default:
			v.Outcome = OutcomePass
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}

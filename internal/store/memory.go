package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabcheck/tabcheck/internal/core"
)

// Memory implements core.Store in process memory. It backs the service and
// handler tests; behavior mirrors the Postgres store, including the
// all-or-nothing CompleteRun.
type Memory struct {
	mu          sync.RWMutex
	templates   map[uuid.UUID]core.Template
	runs        map[uuid.UUID]core.Run
	grids       map[uuid.UUID]*core.Grid
	verdicts    map[uuid.UUID][]core.CellVerdict
	corrections map[uuid.UUID]map[correctionKey]core.Correction
}

type correctionKey struct {
	row      int
	columnID uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		templates:   make(map[uuid.UUID]core.Template),
		runs:        make(map[uuid.UUID]core.Run),
		grids:       make(map[uuid.UUID]*core.Grid),
		verdicts:    make(map[uuid.UUID][]core.CellVerdict),
		corrections: make(map[uuid.UUID]map[correctionKey]core.Correction),
	}
}

var _ core.Store = (*Memory)(nil)

func (s *Memory) CreateTemplate(_ context.Context, t core.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.templates[t.ID]; dup {
		return fmt.Errorf("duplicate key: template %s", t.ID)
	}
	s.templates[t.ID] = t
	return nil
}

func (s *Memory) UpdateTemplate(_ context.Context, t core.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; !ok {
		return fmt.Errorf("%w: template not found: %s", core.ErrNotFound, t.ID)
	}
	s.templates[t.ID] = t
	return nil
}

func (s *Memory) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("%w: template not found: %s", core.ErrNotFound, id)
	}
	delete(s.templates, id)
	return nil
}

func (s *Memory) GetTemplate(_ context.Context, id uuid.UUID) (core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return core.Template{}, fmt.Errorf("%w: template not found: %s", core.ErrNotFound, id)
	}
	return t, nil
}

func (s *Memory) ListTemplates(_ context.Context, owner string) ([]core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Template
	for _, t := range s.templates {
		if owner == "" || t.Owner == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Memory) CreateRun(_ context.Context, run core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.runs[run.ID]; dup {
		return fmt.Errorf("duplicate key: run %s", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

func (s *Memory) SetRunStatus(_ context.Context, id uuid.UUID, status core.RunStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: run not found: %s", core.ErrNotFound, id)
	}
	run.Status = status
	run.Reason = reason
	if status == core.RunCompleted || status == core.RunFailed {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	s.runs[id] = run
	return nil
}

func (s *Memory) CompleteRun(_ context.Context, id uuid.UUID, grid *core.Grid, verdicts []core.CellVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: run not found: %s", core.ErrNotFound, id)
	}
	if run.Status != core.RunPending && run.Status != core.RunRunning {
		return fmt.Errorf("%w: run %s is not in flight", core.ErrNotFound, id)
	}

	run.Status = core.RunCompleted
	now := time.Now().UTC()
	run.CompletedAt = &now
	s.runs[id] = run
	s.grids[id] = grid.Clone()
	s.verdicts[id] = append([]core.CellVerdict(nil), verdicts...)
	return nil
}

func (s *Memory) GetRun(_ context.Context, id uuid.UUID) (core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return core.Run{}, fmt.Errorf("%w: run not found: %s", core.ErrNotFound, id)
	}
	return run, nil
}

func (s *Memory) ListRuns(_ context.Context, templateID uuid.UUID) ([]core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Run
	for _, run := range s.runs {
		if run.TemplateID == templateID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) FindSuccessor(_ context.Context, id uuid.UUID) (core.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.Supersedes == id {
			return run, true, nil
		}
	}
	return core.Run{}, false, nil
}

func (s *Memory) GetGrid(_ context.Context, runID uuid.UUID) (*core.Grid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grids[runID]
	if !ok {
		return nil, fmt.Errorf("%w: no grid stored for run %s", core.ErrNotFound, runID)
	}
	return g.Clone(), nil
}

func (s *Memory) RunVerdicts(_ context.Context, runID uuid.UUID) ([]core.CellVerdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.CellVerdict(nil), s.verdicts[runID]...), nil
}

func (s *Memory) SaveCorrections(_ context.Context, corrections []core.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range corrections {
		m, ok := s.corrections[c.RunID]
		if !ok {
			m = make(map[correctionKey]core.Correction)
			s.corrections[c.RunID] = m
		}
		m[correctionKey{c.Row, c.ColumnID}] = c
	}
	return nil
}

func (s *Memory) RunCorrections(_ context.Context, runID uuid.UUID) ([]core.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Correction
	for _, c := range s.corrections[runID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].ColumnID.String() < out[j].ColumnID.String()
	})
	return out, nil
}

func (s *Memory) PurgeSupersededBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	superseded := make(map[uuid.UUID]struct{})
	for _, run := range s.runs {
		if run.Supersedes != uuid.Nil {
			superseded[run.Supersedes] = struct{}{}
		}
	}

	var purged int64
	for id := range superseded {
		run, ok := s.runs[id]
		if !ok || run.CompletedAt == nil || !run.CompletedAt.Before(cutoff) {
			continue
		}
		delete(s.runs, id)
		delete(s.grids, id)
		delete(s.verdicts, id)
		delete(s.corrections, id)
		// Match the ON DELETE SET NULL behavior of the runs table so
		// successors never point at a purged run.
		for sid, successor := range s.runs {
			if successor.Supersedes == id {
				successor.Supersedes = uuid.Nil
				s.runs[sid] = successor
			}
		}
		purged++
	}
	return purged, nil
}

package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunTimeout is the maximum duration for one validation run.
var RunTimeout = 10 * time.Minute

// persistTimeout bounds the final write of a finished run. It uses a fresh
// context because the run context may already be cancelled or expired.
var persistTimeout = 30 * time.Second

// trackingRetention is how long a finished run stays in the in-memory
// tracking map so late progress subscribers still get the terminal state.
var trackingRetention = 5 * time.Minute

// Service coordinates templates, runs, corrections, and re-validation.
type Service struct {
	store   Store
	ingest  Ingestor
	catalog *Catalog
	engine  *Engine
	limiter *RunLimiter
	logger  *slog.Logger

	mu   sync.RWMutex
	runs map[uuid.UUID]*activeRun
}

// activeRun tracks one in-flight run and its progress listeners.
type activeRun struct {
	ID     uuid.UUID
	Cancel context.CancelFunc
	Done   chan struct{}

	mu        sync.Mutex
	progress  RunProgress
	listeners []chan RunProgress
}

// NewService wires the service from its collaborators. logger may be nil.
func NewService(store Store, ingest Ingestor, catalog *Catalog, engine *Engine, limiter *RunLimiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		ingest:  ingest,
		catalog: catalog,
		engine:  engine,
		limiter: limiter,
		logger:  logger,
		runs:    make(map[uuid.UUID]*activeRun),
	}
}

// RuleTypes lists the rule types templates may bind, in priority order.
func (s *Service) RuleTypes() []RuleType {
	return s.catalog.Types()
}

// Limiter exposes the run limiter for shutdown draining and monitoring.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// FileFingerprint returns the hex SHA-256 of the raw file content. Two
// uploads with the same fingerprint are the same file as far as run
// deduplication is concerned.
func FileFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// gridFingerprint fingerprints a corrected grid so a re-validation run gets
// its own dedup identity.
func gridFingerprint(g *Grid) string {
	h := sha256.New()
	for _, cell := range g.Headers {
		io.WriteString(h, cell)
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, row := range g.Rows {
		for _, cell := range row {
			io.WriteString(h, cell)
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StartRunParams describes one validation request.
type StartRunParams struct {
	TemplateID uuid.UUID
	Owner      string
	FileName   string
	Sheet      string
	Data       []byte
}

// StartRun begins an asynchronous validation run and returns the pending Run
// immediately. Use SubscribeProgress or GetRunProgress for updates and
// WaitForRun to block until the terminal state.
//
// Misconfigured templates are rejected here, before the run exists; a rule
// configuration problem is never discovered mid-run.
func (s *Service) StartRun(ctx context.Context, p StartRunParams) (Run, error) {
	tmpl, err := s.store.GetTemplate(ctx, p.TemplateID)
	if err != nil {
		return Run{}, err
	}
	compiled, err := CompileTemplate(tmpl, s.catalog)
	if err != nil {
		return Run{}, err
	}
	if len(p.Data) == 0 {
		return Run{}, fmt.Errorf("%w: empty file", ErrUnreadableFile)
	}

	run := Run{
		ID:          uuid.New(),
		TemplateID:  tmpl.ID,
		Owner:       p.Owner,
		FileName:    p.FileName,
		Fingerprint: FileFingerprint(p.Data),
		Sheet:       p.Sheet,
		Status:      RunPending,
		CreatedAt:   time.Now().UTC(),
	}

	data := p.Data
	return s.launch(ctx, run, compiled, func(context.Context) (*Grid, error) {
		return s.ingest.Read(run.FileName, bytes.NewReader(data), run.Sheet)
	})
}

// launch claims a limiter slot, persists the pending run, and starts the
// background processor. loadGrid supplies the grid once the run is underway.
func (s *Service) launch(ctx context.Context, run Run, compiled *CompiledTemplate, loadGrid func(context.Context) (*Grid, error)) (Run, error) {
	if err := s.limiter.Acquire(ctx, run.TemplateID, run.Fingerprint); err != nil {
		return Run{}, err
	}

	if err := s.store.CreateRun(ctx, run); err != nil {
		s.limiter.Release(run.TemplateID, run.Fingerprint)
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), RunTimeout)

	ar := &activeRun{
		ID:     run.ID,
		Cancel: cancel,
		Done:   make(chan struct{}),
		progress: RunProgress{
			RunID:      run.ID.String(),
			TemplateID: run.TemplateID.String(),
			Phase:      PhaseStarting,
			FileName:   run.FileName,
		},
	}

	s.mu.Lock()
	s.runs[run.ID] = ar
	s.mu.Unlock()

	go s.processRun(runCtx, ar, run, compiled, loadGrid)

	return run, nil
}

// processRun drives one run through its lifecycle in the background.
func (s *Service) processRun(ctx context.Context, ar *activeRun, run Run, compiled *CompiledTemplate, loadGrid func(context.Context) (*Grid, error)) {
	log := s.logger.With(
		slog.String("run_id", run.ID.String()),
		slog.String("template_id", run.TemplateID.String()),
		slog.String("file", run.FileName),
	)

	defer func() {
		ar.Cancel()
		s.limiter.Release(run.TemplateID, run.Fingerprint)
		close(ar.Done)
		ar.closeListeners()
		s.cleanup(run.ID, trackingRetention)
	}()

	start := time.Now()

	ar.update(func(p *RunProgress) { p.Phase = PhaseReading })
	grid, err := loadGrid(ctx)
	if err != nil {
		s.failRun(ar, run, log, err)
		return
	}

	if err := s.store.SetRunStatus(ctx, run.ID, RunRunning, ""); err != nil {
		s.failRun(ar, run, log, fmt.Errorf("mark running: %w", err))
		return
	}

	ar.update(func(p *RunProgress) {
		p.Phase = PhaseValidating
		p.TotalRows = len(grid.Rows)
	})

	verdicts, err := s.engine.Evaluate(ctx, run.ID, compiled, grid, func(done, failed int) {
		ar.update(func(p *RunProgress) {
			p.CurrentRow = done
			p.FailedRows = failed
		})
	})
	if err != nil {
		s.failRun(ar, run, log, err)
		return
	}

	ar.update(func(p *RunProgress) { p.Phase = PhasePersisting })

	// The run context may be near its deadline; persistence gets its own.
	persistCtx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelPersist()
	if err := s.store.CompleteRun(persistCtx, run.ID, grid, verdicts); err != nil {
		s.failRun(ar, run, log, fmt.Errorf("persist verdicts: %w", err))
		return
	}

	ar.update(func(p *RunProgress) {
		p.Phase = PhaseComplete
		p.CurrentRow = p.TotalRows
	})

	log.Info("run completed",
		slog.Int("rows", len(grid.Rows)),
		slog.Int("verdicts", len(verdicts)),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// failRun records a terminal failure. Cancellation is stored as a failed run
// with a cancellation reason; no verdicts are kept either way.
func (s *Service) failRun(ar *activeRun, run Run, log *slog.Logger, cause error) {
	phase := PhaseFailed
	if IsCancelled(cause) {
		phase = PhaseCancelled
	}

	statusCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.SetRunStatus(statusCtx, run.ID, RunFailed, cause.Error()); err != nil {
		log.Error("record run failure", slog.Any("error", err))
	}

	ar.update(func(p *RunProgress) {
		p.Phase = phase
		p.Error = cause.Error()
	})

	log.Warn("run did not complete", slog.String("phase", string(phase)), slog.Any("error", cause))
}

// update mutates the progress snapshot under lock and notifies listeners.
func (ar *activeRun) update(fn func(*RunProgress)) {
	ar.mu.Lock()
	fn(&ar.progress)
	snapshot := ar.progress
	listeners := ar.listeners
	ar.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- snapshot:
		default:
			// Listener is slow, skip this update.
		}
	}
}

func (ar *activeRun) closeListeners() {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	for _, ch := range ar.listeners {
		close(ch)
	}
	ar.listeners = nil
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID uuid.UUID, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

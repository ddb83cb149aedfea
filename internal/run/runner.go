package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/formforge/internal/budget"
	"github.com/dgallion1/formforge/internal/builder"
	"github.com/dgallion1/formforge/internal/checkpoint"
	"github.com/dgallion1/formforge/internal/config"
	"github.com/dgallion1/formforge/internal/grouping"
	"github.com/dgallion1/formforge/internal/runlock"
	"github.com/dgallion1/formforge/internal/source"
	"github.com/dgallion1/formforge/internal/target"
)

// ErrBusy is returned when a run is already in flight. The design is
// single-writer: at most one builder run per document/cursor pair.
var ErrBusy = errors.New("a run is already in progress")

// Runner executes bounded builder runs, one at a time.
type Runner struct {
	cfg  config.Config
	log  *slog.Logger
	runs *Store

	busy   atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(cfg config.Config, log *slog.Logger) *Runner {
	return &Runner{
		cfg:  cfg,
		log:  log,
		runs: NewStore(cfg.RunTTL),
	}
}

// Start launches the registry cleanup loop.
func (rn *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	rn.cancel = cancel

	rn.wg.Add(1)
	go func() {
		defer rn.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rn.runs.Cleanup()
			}
		}
	}()
}

// Stop shuts the runner down. In-flight runs finish on their own budget.
func (rn *Runner) Stop() {
	if rn.cancel != nil {
		rn.cancel()
	}
	rn.wg.Wait()
}

// Trigger starts one bounded run in the background. Returns ErrBusy if a
// run is already in flight.
func (rn *Runner) Trigger() (*Run, error) {
	if !rn.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	now := time.Now()
	r := &Run{
		ID:        uuid.NewString(),
		Source:    rn.cfg.SourcePath,
		Status:    StatusQueued,
		StartedAt: now,
		UpdatedAt: now,
	}
	rn.runs.Put(r)

	rn.wg.Add(1)
	go func() {
		defer rn.wg.Done()
		defer rn.busy.Store(false)
		rn.execute(r)
	}()
	return r, nil
}

// RunOnce executes one bounded run synchronously, for --once invocations.
func (rn *Runner) RunOnce() (builder.Outcome, error) {
	if !rn.busy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer rn.busy.Store(false)

	now := time.Now()
	r := &Run{
		ID:        uuid.NewString(),
		Source:    rn.cfg.SourcePath,
		Status:    StatusQueued,
		StartedAt: now,
		UpdatedAt: now,
	}
	rn.runs.Put(r)
	rn.execute(r)

	snap := r.Snapshot()
	switch snap.Status {
	case StatusInterrupted:
		return builder.OutcomeInterrupted, nil
	case StatusCompleted:
		return builder.OutcomeCompleted, nil
	default:
		return 0, errors.New(snap.Error)
	}
}

// Get returns a run by ID.
func (rn *Runner) Get(id string) *Run {
	return rn.runs.Get(id)
}

// execute performs one budget-bounded build. The guard starts before any
// I/O so the whole invocation, source read included, fits in the margin.
func (rn *Runner) execute(r *Run) {
	log := rn.log.With("run_id", r.ID, "source", rn.cfg.SourcePath)
	guard := budget.NewGuard(rn.cfg.Budget)

	lock, err := runlock.Acquire(rn.cfg.LockPath, runlock.DefaultTimeout)
	if err != nil {
		log.Error("run lock", "error", err)
		r.Fail(fmt.Errorf("run lock: %w", err))
		return
	}
	defer lock.Release()

	r.SetStatus(StatusRunning)

	records, err := rn.fetchRecords()
	if err != nil {
		// Fatal and safe: nothing has been mutated yet.
		log.Error("fetch records", "error", err)
		r.Fail(err)
		return
	}
	log.Info("records fetched", "count", len(records))

	tree := grouping.GroupBy(records, rn.cfg.GroupColumns)

	cursors, err := checkpoint.OpenFile(rn.cfg.StatePath)
	if err != nil {
		log.Error("open cursor store", "error", err)
		r.Fail(err)
		return
	}

	doc, err := target.OpenOrCreate(rn.cfg.DocumentPath, rn.cfg.DocumentTitle, rn.cfg.ValueColumn)
	if err != nil {
		log.Error("open document", "error", err)
		r.Fail(err)
		return
	}

	b := builder.New(doc, cursors, log)
	outcome, err := b.Run(tree, rn.cfg.GroupColumns, guard)
	if err != nil {
		log.Error("build failed", "error", err)
		r.Fail(err)
		return
	}

	// Render whatever exists so far, interrupted or not. The node model is
	// the source of truth; the DOCX is a deterministic projection of it.
	if err := doc.Flush(); err != nil {
		log.Error("flush document", "error", err)
		r.Fail(err)
		return
	}

	r.Finish(outcome, b.Stats())
	log.Info("run finished", "outcome", outcome.String(), "elapsed", guard.Elapsed())
}

func (rn *Runner) fetchRecords() ([]source.Record, error) {
	reader, err := source.ForFile(rn.cfg.SourcePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(rn.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return reader.ReadRecords(f, rn.cfg.SourcePath)
}

// Cursors reads the persisted cursor set for inspection.
func (rn *Runner) Cursors() (map[checkpoint.Level]string, error) {
	s, err := checkpoint.OpenFile(rn.cfg.StatePath)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// ResetCursors clears all persisted progress. The next run starts from the
// beginning; idempotent upserts keep the document free of duplicates.
func (rn *Runner) ResetCursors() error {
	if rn.busy.Load() {
		return ErrBusy
	}
	return checkpoint.Reset(rn.cfg.StatePath)
}

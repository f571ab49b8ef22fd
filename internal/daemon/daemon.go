// Package daemon provides the background reconciler that keeps the local
// dashboard workspace and the remote store converged.
//
// The daemon:
//  1. Reconciles the whole workspace against the remote store on startup
//  2. Watches boards/*.json for local edits and syncs them with debouncing
//  3. Periodically re-runs a full reconcile to pick up remote-side changes
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/boardpilot/boardpilot/internal/schema"
	boardsync "github.com/boardpilot/boardpilot/internal/sync"
)

// OutcomeKind classifies one reconcile outcome.
type OutcomeKind string

const (
	OutcomeAdopted       OutcomeKind = "adopted"        // remote copy written to disk
	OutcomeConflict      OutcomeKind = "conflict"       // both sides changed
	OutcomeCreatedRemote OutcomeKind = "created_remote" // local copy pushed up
	OutcomeDeleted       OutcomeKind = "deleted"        // local deletion propagated
	OutcomeError         OutcomeKind = "error"
)

// Outcome describes what happened to one dashboard during reconciliation.
type Outcome struct {
	Kind        OutcomeKind
	DashboardID string
	Name        string
	Err         error
	At          time.Time
}

// Reporter receives reconcile outcomes as they settle. The monitor server
// implements this to fan outcomes out to connected clients.
type Reporter interface {
	Report(outcome Outcome)
}

// Config holds configuration for the daemon.
type Config struct {
	// ReconcileInterval is how often to run a full workspace reconcile.
	ReconcileInterval time.Duration

	// DebounceInterval is how long to wait before processing file changes.
	// This batches rapid editor saves together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReconcileInterval: 30 * time.Second,
		DebounceInterval:  100 * time.Millisecond,
		Logger:            log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches the local workspace and drives the sync engine.
type Daemon struct {
	engine    boardsync.Engine
	boardsDir string
	reporter  Reporter
	config    *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> queued at
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon with default configuration. The reporter may be nil
// when no monitor is attached.
func New(engine boardsync.Engine, boardsDir string, reporter Reporter) (*Daemon, error) {
	return NewWithConfig(engine, boardsDir, reporter, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(engine boardsync.Engine, boardsDir string, reporter Reporter, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if boardsDir == "" {
		return nil, fmt.Errorf("boardsDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		engine:      engine,
		boardsDir:   boardsDir,
		reporter:    reporter,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
//  1. Run a full reconcile of the workspace
//  2. Start watching for file changes
//  3. Periodically re-run the full reconcile
//  4. Process file changes with debouncing
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.ReconcileAll(ctx); err != nil {
		return fmt.Errorf("initial reconcile failed: %w", err)
	}

	if err := d.watcher.Add(d.boardsDir); err != nil {
		return fmt.Errorf("failed to watch boards directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.boardsDir)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processChangeQueue()
	go d.periodicReconcile()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// ReconcileAll syncs every dashboard in the workspace against the remote
// store in one concurrent batch. Adopted remote copies are written back to
// disk, conflicted ones included; conflicts and errors are reported, never
// fatal.
func (d *Daemon) ReconcileAll(ctx context.Context) error {
	d.config.Logger.Println("Reconciling workspace")

	locals, err := schema.ReadAllDashboardFiles(d.boardsDir)
	if err != nil {
		return fmt.Errorf("failed to read boards: %w", err)
	}
	if len(locals) == 0 {
		d.config.Logger.Println("Workspace is empty, nothing to reconcile")
		return nil
	}

	result := d.engine.SyncBatch(ctx, locals)

	for _, board := range result.Updated {
		if err := schema.WriteDashboardFile(d.boardsDir, board); err != nil {
			d.config.Logger.Printf("Error writing adopted copy %s: %v", board.ID, err)
			d.report(Outcome{Kind: OutcomeError, DashboardID: board.ID, Name: board.Name, Err: err})
			continue
		}
		d.report(Outcome{Kind: OutcomeAdopted, DashboardID: board.ID, Name: board.Name})
	}

	// Conflicted boards still adopt the remote copy; the conflict outcome
	// only flags that local edits were overwritten.
	for _, conflict := range result.Conflicts {
		if err := schema.WriteDashboardFile(d.boardsDir, conflict.Remote); err != nil {
			d.config.Logger.Printf("Error writing adopted copy %s: %v", conflict.Remote.ID, err)
			d.report(Outcome{Kind: OutcomeError, DashboardID: conflict.Remote.ID, Name: conflict.Remote.Name, Err: err})
			continue
		}
		d.report(Outcome{
			Kind:        OutcomeConflict,
			DashboardID: conflict.Local.ID,
			Name:        conflict.Local.Name,
		})
	}

	for _, syncErr := range result.Errors {
		d.report(Outcome{Kind: OutcomeError, DashboardID: syncErr.ID, Err: syncErr.Err})
	}

	d.config.Logger.Printf("Reconcile complete: %d adopted, %d conflicts, %d errors",
		len(result.Updated), len(result.Conflicts), len(result.Errors))
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create, Write, Remove
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
				continue
			}

			// Only process .json files
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			d.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue drains the change queue on a debounce tick.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges(d.ctx)
		}
	}
}

// processPendingChanges syncs files that have been queued for long enough.
func (d *Daemon) processPendingChanges(ctx context.Context) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}

		d.config.Logger.Printf("Processing change: %s", path)
		if err := d.syncBoardFile(ctx, path); err != nil {
			d.config.Logger.Printf("Error syncing %s: %v", path, err)
		}

		delete(d.changeQueue, path)
	}
}

// syncBoardFile reconciles a single changed dashboard file. A removed file
// propagates as a remote delete.
func (d *Daemon) syncBoardFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		d.config.Logger.Printf("Propagating deletion: %s", id)
		if err := d.engine.Delete(ctx, id); err != nil {
			d.report(Outcome{Kind: OutcomeError, DashboardID: id, Err: err})
			return err
		}
		d.report(Outcome{Kind: OutcomeDeleted, DashboardID: id})
		return nil
	}

	board, err := schema.ReadDashboardFile(path)
	if err != nil {
		return fmt.Errorf("failed to read board file: %w", err)
	}

	res, err := d.engine.SyncOne(ctx, board)
	if err != nil {
		d.report(Outcome{Kind: OutcomeError, DashboardID: board.ID, Name: board.Name, Err: err})
		return err
	}

	switch {
	case res.CreatedRemote:
		d.report(Outcome{Kind: OutcomeCreatedRemote, DashboardID: board.ID, Name: board.Name})

	case res.NeedsUpdate:
		if err := schema.WriteDashboardFile(d.boardsDir, res.Remote); err != nil {
			return fmt.Errorf("failed to write adopted copy: %w", err)
		}
		if res.Conflict {
			d.report(Outcome{Kind: OutcomeConflict, DashboardID: board.ID, Name: board.Name})
		} else {
			d.report(Outcome{Kind: OutcomeAdopted, DashboardID: board.ID, Name: board.Name})
		}
	}
	return nil
}

// periodicReconcile re-runs the full workspace reconcile on an interval to
// pick up remote-side changes the watcher cannot see.
func (d *Daemon) periodicReconcile() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if err := d.ReconcileAll(d.ctx); err != nil {
				d.config.Logger.Printf("Error during periodic reconcile: %v", err)
			}
		}
	}
}

func (d *Daemon) report(outcome Outcome) {
	if d.reporter == nil {
		return
	}
	if outcome.At.IsZero() {
		outcome.At = time.Now()
	}
	d.reporter.Report(outcome)
}

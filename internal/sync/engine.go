package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/boardpilot/boardpilot/internal/remote"
	"github.com/boardpilot/boardpilot/internal/schema"
)

// ErrNotAuthenticated blocks every store operation when the engine has no
// user context.
var ErrNotAuthenticated = errors.New("no authenticated user")

// RemoteOpError is a typed failure from a single-entity store operation.
// Batch syncs fold these into the Errors bucket instead of returning them.
type RemoteOpError struct {
	Op  string
	ID  string
	Err error
}

func (e *RemoteOpError) Error() string {
	return fmt.Sprintf("remote %s failed for %s: %v", e.Op, e.ID, e.Err)
}

func (e *RemoteOpError) Unwrap() error { return e.Err }

// engine implements the Engine interface.
type engine struct {
	store  remote.Store
	userID string
	logger *log.Logger
	now    func() time.Time
}

// New creates a new Engine instance bound to one user's context.
//
// The store must be initialized before passing to this function.
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	store, err := remote.Open(".boardpilot/store.db")
//	if err != nil {
//	    return err
//	}
//	if err := store.InitSchema(ctx); err != nil {
//	    return err
//	}
//	eng := sync.New(store, userID, nil)
func New(store remote.Store, userID string, logger *log.Logger) Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &engine{
		store:  store,
		userID: userID,
		logger: logger,
		now:    time.Now,
	}
}

// Create implements Engine.Create.
func (e *engine) Create(ctx context.Context, board *schema.Dashboard) (*schema.Dashboard, error) {
	if e.userID == "" {
		return nil, ErrNotAuthenticated
	}

	b := *board
	b.UserID = e.userID
	b.SetDefaults()

	stored, err := e.store.UpsertDashboard(ctx, &b)
	if err != nil {
		e.logger.Printf("Create failed for %s: %v", b.ID, err)
		return nil, &RemoteOpError{Op: "create", ID: b.ID, Err: err}
	}

	e.logger.Printf("Created dashboard: %s (%s)", stored.ID, stored.Name)
	return stored, nil
}

// Update implements Engine.Update.
//
// The record is rebuilt from defaults rather than read-modify-written, so a
// partial patch can never resurrect stale remote field values.
func (e *engine) Update(ctx context.Context, id string, patch DashboardPatch) (*schema.Dashboard, error) {
	if e.userID == "" {
		return nil, ErrNotAuthenticated
	}

	now := e.now()
	base := &schema.Dashboard{
		ID:        id,
		UserID:    e.userID,
		Name:      "Untitled dashboard",
		Widgets:   []schema.Widget{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if patch.Name != nil {
		base.Name = *patch.Name
	}
	if patch.Description != nil {
		base.Description = *patch.Description
	}
	if patch.Widgets != nil {
		base.Widgets = *patch.Widgets
	}
	if patch.IsPublished != nil {
		base.IsPublished = *patch.IsPublished
	}
	if patch.IsTemplate != nil {
		base.IsTemplate = *patch.IsTemplate
	}

	// Keep the original creation time when the record already exists;
	// everything else comes from the patch or the defaults above.
	if existing, err := e.store.FetchDashboard(ctx, id); err == nil {
		base.CreatedAt = existing.CreatedAt
	} else if !remote.IsNotFound(err) {
		e.logger.Printf("Update fetch failed for %s: %v", id, err)
		return nil, &RemoteOpError{Op: "update", ID: id, Err: err}
	}
	base.UpdatedAt = now

	stored, err := e.store.UpsertDashboard(ctx, base)
	if err != nil {
		e.logger.Printf("Update failed for %s: %v", id, err)
		return nil, &RemoteOpError{Op: "update", ID: id, Err: err}
	}

	e.logger.Printf("Updated dashboard: %s", stored.ID)
	return stored, nil
}

// Delete implements Engine.Delete.
func (e *engine) Delete(ctx context.Context, id string) error {
	if e.userID == "" {
		return ErrNotAuthenticated
	}

	if err := e.store.DeleteDashboard(ctx, id, e.userID); err != nil {
		e.logger.Printf("Delete failed for %s: %v", id, err)
		return &RemoteOpError{Op: "delete", ID: id, Err: err}
	}

	e.logger.Printf("Deleted dashboard: %s", id)
	return nil
}

// Publish implements Engine.Publish.
func (e *engine) Publish(ctx context.Context, id string, published bool) (*schema.Dashboard, error) {
	if e.userID == "" {
		return nil, ErrNotAuthenticated
	}

	board, err := e.store.FetchDashboard(ctx, id)
	if err != nil {
		e.logger.Printf("Publish fetch failed for %s: %v", id, err)
		return nil, &RemoteOpError{Op: "publish", ID: id, Err: err}
	}

	board.IsPublished = published
	board.UpdatedAt = e.now()

	stored, err := e.store.UpsertDashboard(ctx, board)
	if err != nil {
		e.logger.Printf("Publish failed for %s: %v", id, err)
		return nil, &RemoteOpError{Op: "publish", ID: id, Err: err}
	}

	e.logger.Printf("Set published=%v on dashboard: %s", published, id)
	return stored, nil
}

// SyncOne implements Engine.SyncOne.
func (e *engine) SyncOne(ctx context.Context, local *schema.Dashboard) (Resolution, error) {
	if e.userID == "" {
		return Resolution{}, ErrNotAuthenticated
	}

	remoteBoard, err := e.store.FetchDashboard(ctx, local.ID)
	if remote.IsNotFound(err) {
		// Locally authoritative: push the local copy up.
		if _, err := e.store.UpsertDashboard(ctx, local); err != nil {
			return Resolution{}, &RemoteOpError{Op: "sync-create", ID: local.ID, Err: err}
		}
		e.logger.Printf("Created remote copy for dashboard: %s", local.ID)
		return Resolution{CreatedRemote: true}, nil
	}
	if err != nil {
		return Resolution{}, &RemoteOpError{Op: "sync-fetch", ID: local.ID, Err: err}
	}

	return Resolve(local, remoteBoard), nil
}

// syncOutcome routes one entity's result to exactly one bucket.
type syncOutcome struct {
	updated  *schema.Dashboard
	conflict *Conflict
	err      *SyncError
}

// SyncBatch implements Engine.SyncBatch.
func (e *engine) SyncBatch(ctx context.Context, locals []*schema.Dashboard) BatchResult {
	outcomes := make(chan syncOutcome, len(locals))

	for _, local := range locals {
		go func(board *schema.Dashboard) {
			res, err := e.SyncOne(ctx, board)
			switch {
			case err != nil:
				outcomes <- syncOutcome{err: &SyncError{ID: board.ID, Err: err}}
			case res.Conflict:
				outcomes <- syncOutcome{conflict: &Conflict{Local: board, Remote: res.Remote}}
			case res.NeedsUpdate:
				outcomes <- syncOutcome{updated: res.Remote}
			default:
				outcomes <- syncOutcome{}
			}
		}(local)
	}

	// Fan-in barrier: collect every entity's outcome before returning.
	var result BatchResult
	for range locals {
		out := <-outcomes
		switch {
		case out.err != nil:
			e.logger.Printf("WARNING: sync failed for %s: %v", out.err.ID, out.err.Err)
			result.Errors = append(result.Errors, *out.err)
		case out.conflict != nil:
			e.logger.Printf("Conflict detected for dashboard: %s", out.conflict.Local.ID)
			result.Conflicts = append(result.Conflicts, *out.conflict)
		case out.updated != nil:
			result.Updated = append(result.Updated, out.updated)
		}
	}

	e.logger.Printf("Batch sync complete: total=%d updated=%d conflicts=%d errors=%d",
		len(locals), len(result.Updated), len(result.Conflicts), len(result.Errors))

	return result
}

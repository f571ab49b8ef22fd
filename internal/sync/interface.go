// Package sync reconciles locally mutated dashboards against the remote
// store under entity-level last-writer-wins semantics.
package sync

import (
	"context"

	"github.com/boardpilot/boardpilot/internal/schema"
)

// Engine performs per-entity store operations and compare-and-reconcile
// syncs for dashboards.
//
// The engine is designed to be resilient in batch mode - individual entity
// failures must not stop the rest of the batch. Errors are collected per
// entity and the batch continues. Single-entity operations propagate their
// errors to the caller after logging; retries are the caller's affair.
type Engine interface {
	// Create transcodes and upserts a dashboard by primary key.
	//
	// Upsert-by-id is idempotent: re-creating an entity with the same id
	// overwrites it, so Create doubles as "repair" for records the store
	// lost.
	Create(ctx context.Context, board *schema.Dashboard) (*schema.Dashboard, error)

	// Update merges the patch over a freshly constructed base record and
	// upserts it. Fields absent from the patch fall back to safe defaults,
	// not to the previous remote values. Always stamps a new UpdatedAt.
	Update(ctx context.Context, id string, patch DashboardPatch) (*schema.Dashboard, error)

	// Delete removes the dashboard from the remote store, scoped to the
	// owning user. Removing the local copy is the caller's responsibility.
	Delete(ctx context.Context, id string) error

	// Publish flips the published flag on the remote copy.
	Publish(ctx context.Context, id string, published bool) (*schema.Dashboard, error)

	// SyncOne compares one local dashboard against its remote counterpart.
	//
	// If the remote copy is absent, the local copy is authoritative: it is
	// created remotely and the result reports no update needed (and never
	// a conflict). Otherwise the conflict resolver decides.
	SyncOne(ctx context.Context, local *schema.Dashboard) (Resolution, error)

	// SyncBatch runs SyncOne concurrently across all input dashboards.
	//
	// There is no ordering guarantee between entities and no shared mutable
	// state between in-flight syncs. Each entity's outcome lands in exactly
	// one of the three result buckets; one entity's failure never aborts or
	// delays the others. Returns only after every sync has settled.
	SyncBatch(ctx context.Context, locals []*schema.Dashboard) BatchResult
}

// DashboardPatch carries the fields an Update call wants to change.
// Nil fields are left at their defaults in the rebuilt record.
type DashboardPatch struct {
	Name        *string
	Description *string
	Widgets     *[]schema.Widget
	IsPublished *bool
	IsTemplate  *bool
}

// Resolution is the outcome of comparing one local copy against the remote.
type Resolution struct {
	// NeedsUpdate is true when the remote copy is strictly newer and
	// should be adopted locally.
	NeedsUpdate bool

	// Conflict marks that both sides changed since the last common state.
	// Advisory only: the remote copy still wins the adoption; the flag
	// tells the caller to prompt for manual resolution.
	Conflict bool

	// Remote is the remote copy to adopt when NeedsUpdate is set.
	Remote *schema.Dashboard

	// CreatedRemote is true when the remote copy was absent and the local
	// copy was pushed up instead.
	CreatedRemote bool
}

// Conflict pairs the two versions of a dashboard that diverged.
type Conflict struct {
	Local  *schema.Dashboard
	Remote *schema.Dashboard
}

// SyncError records one entity's failure inside a batch.
type SyncError struct {
	ID  string
	Err error
}

// BatchResult partitions a batch sync's outcomes into three disjoint sets.
// It exists only for the duration of one SyncBatch call.
type BatchResult struct {
	// Updated holds the remote copies that were adopted locally.
	Updated []*schema.Dashboard
	// Conflicts holds local/remote pairs requiring user choice.
	Conflicts []Conflict
	// Errors holds per-entity failures.
	Errors []SyncError
}

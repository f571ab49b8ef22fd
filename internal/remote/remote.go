// Package remote defines the capability boundary between the sync engine and
// whatever durable store holds the shared copy of dashboards and threads.
//
// The store is request/response only - no subscriptions. Implementations must
// distinguish a lookup miss (ErrNotFound) from an operation failure, because
// the sync engine treats "not found" as create-on-sync, not as an error.
package remote

import (
	"context"
	"errors"

	"github.com/boardpilot/boardpilot/internal/schema"
)

// ErrNotFound signals that a fetch by id matched no record.
var ErrNotFound = errors.New("record not found")

// DashboardFilter selects dashboards in FetchDashboardsWhere.
// Zero-valued fields are not applied.
type DashboardFilter struct {
	// UserID restricts to dashboards owned by a user (empty = all)
	UserID string
	// IsPublished filters by the published flag (nil = both)
	IsPublished *bool
	// IsTemplate filters by the template flag (nil = both)
	IsTemplate *bool
	// Limit restricts the number of results (0 = no limit)
	Limit int
}

// Store is the remote CRUD capability the sync engine consumes.
//
// Upserts are idempotent by primary key: re-upserting a record with the same
// id overwrites it. Deletes are scoped to the owning user and are idempotent.
type Store interface {
	// FetchDashboard retrieves a dashboard by id.
	// Returns ErrNotFound if no such record exists.
	FetchDashboard(ctx context.Context, id string) (*schema.Dashboard, error)

	// FetchDashboardsWhere retrieves dashboards matching the filter,
	// ordered by updated_at descending.
	FetchDashboardsWhere(ctx context.Context, filter DashboardFilter) ([]*schema.Dashboard, error)

	// UpsertDashboard inserts or overwrites a dashboard by id and returns
	// the stored copy.
	UpsertDashboard(ctx context.Context, board *schema.Dashboard) (*schema.Dashboard, error)

	// DeleteDashboard removes a dashboard, scoped to the owning user.
	// Returns nil if the record doesn't exist (idempotent).
	DeleteDashboard(ctx context.Context, id, userID string) error

	// FetchThread retrieves a thread by id.
	// Returns ErrNotFound if no such record exists.
	FetchThread(ctx context.Context, id string) (*schema.Thread, error)

	// FetchThreadsByUser retrieves a user's threads ordered by
	// updated_at descending.
	FetchThreadsByUser(ctx context.Context, userID string, limit int) ([]*schema.Thread, error)

	// UpsertThread inserts or overwrites a thread by id and returns the
	// stored copy.
	UpsertThread(ctx context.Context, thread *schema.Thread) (*schema.Thread, error)

	// DeleteThread removes a thread, scoped to the owning user.
	// Returns nil if the record doesn't exist (idempotent).
	DeleteThread(ctx context.Context, id, userID string) error
}

// IsNotFound reports whether err is a lookup miss rather than a failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

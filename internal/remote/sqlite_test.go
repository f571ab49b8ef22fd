package remote

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/boardpilot/boardpilot/internal/schema"
)

// setupTestDB creates a file-backed store in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return db
}

func testBoard(id, userID string) *schema.Dashboard {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &schema.Dashboard{
		ID:     id,
		UserID: userID,
		Name:   "Board " + id,
		Widgets: []schema.Widget{{
			ID:       "w1",
			Type:     schema.WidgetMetric,
			Title:    "Total",
			Position: schema.Position{X: 0, Y: 0},
			Size:     schema.Size{Width: 280, Height: 160},
			Config:   map[string]interface{}{"dataSource": "sales"},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUpsertAndFetchDashboard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	board := testBoard("b1", "u1")

	stored, err := db.UpsertDashboard(ctx, board)
	if err != nil {
		t.Fatalf("UpsertDashboard failed: %v", err)
	}
	if stored.ID != "b1" || stored.Name != "Board b1" {
		t.Errorf("unexpected stored dashboard: %+v", stored)
	}
	if len(stored.Widgets) != 1 || stored.Widgets[0].Type != schema.WidgetMetric {
		t.Errorf("widgets lost in round trip: %+v", stored.Widgets)
	}
	if !stored.CreatedAt.Equal(board.CreatedAt) {
		t.Errorf("created_at drifted: %v vs %v", stored.CreatedAt, board.CreatedAt)
	}
}

func TestUpsertOverwritesById(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	board := testBoard("b1", "u1")
	if _, err := db.UpsertDashboard(ctx, board); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	board.Name = "Renamed"
	board.UpdatedAt = board.UpdatedAt.Add(time.Minute)
	stored, err := db.UpsertDashboard(ctx, board)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if stored.Name != "Renamed" {
		t.Errorf("expected overwrite, got %q", stored.Name)
	}

	boards, err := db.FetchDashboardsWhere(ctx, DashboardFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("FetchDashboardsWhere failed: %v", err)
	}
	if len(boards) != 1 {
		t.Fatalf("upsert must not duplicate rows, got %d", len(boards))
	}
}

func TestFetchDashboardNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.FetchDashboard(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing dashboard")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestUpsertRejectsInvalidDashboard(t *testing.T) {
	db := setupTestDB(t)
	board := testBoard("b1", "u1")
	board.Name = ""

	if _, err := db.UpsertDashboard(context.Background(), board); err == nil {
		t.Fatal("expected invalid dashboard to be rejected")
	}
}

func TestFetchDashboardsWhereFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	published := testBoard("b1", "u1")
	published.IsPublished = true
	private := testBoard("b2", "u1")
	other := testBoard("b3", "u2")

	for _, board := range []*schema.Dashboard{published, private, other} {
		if _, err := db.UpsertDashboard(ctx, board); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	mine, err := db.FetchDashboardsWhere(ctx, DashboardFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("FetchDashboardsWhere failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 dashboards for u1, got %d", len(mine))
	}

	yes := true
	pub, err := db.FetchDashboardsWhere(ctx, DashboardFilter{UserID: "u1", IsPublished: &yes})
	if err != nil {
		t.Fatalf("FetchDashboardsWhere failed: %v", err)
	}
	if len(pub) != 1 || pub[0].ID != "b1" {
		t.Errorf("expected only the published dashboard, got %+v", pub)
	}

	limited, err := db.FetchDashboardsWhere(ctx, DashboardFilter{Limit: 1})
	if err != nil {
		t.Fatalf("FetchDashboardsWhere failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit respected, got %d", len(limited))
	}
}

func TestDeleteDashboardScopedToUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertDashboard(ctx, testBoard("b1", "u1")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Another user's delete is a silent no-op.
	if err := db.DeleteDashboard(ctx, "b1", "u2"); err != nil {
		t.Fatalf("DeleteDashboard failed: %v", err)
	}
	if _, err := db.FetchDashboard(ctx, "b1"); err != nil {
		t.Fatal("dashboard must survive another user's delete")
	}

	if err := db.DeleteDashboard(ctx, "b1", "u1"); err != nil {
		t.Fatalf("DeleteDashboard failed: %v", err)
	}
	if _, err := db.FetchDashboard(ctx, "b1"); !IsNotFound(err) {
		t.Fatalf("expected not-found after owner delete, got %v", err)
	}
}

func TestThreadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	thread := &schema.Thread{
		ID:          "t1",
		UserID:      "u1",
		Name:        "Quarterly numbers",
		DashboardID: "b1",
		IsNew:       true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, err := db.UpsertThread(ctx, thread)
	if err != nil {
		t.Fatalf("UpsertThread failed: %v", err)
	}
	if !stored.IsNew || stored.DashboardID != "b1" {
		t.Errorf("unexpected stored thread: %+v", stored)
	}

	// Clearing the flag persists.
	stored.IsNew = false
	stored.UpdatedAt = now.Add(time.Minute)
	if _, err := db.UpsertThread(ctx, stored); err != nil {
		t.Fatalf("UpsertThread failed: %v", err)
	}

	fetched, err := db.FetchThread(ctx, "t1")
	if err != nil {
		t.Fatalf("FetchThread failed: %v", err)
	}
	if fetched.IsNew {
		t.Error("expected is_new cleared after update")
	}
}

func TestFetchThreadsByUserOrdersByUpdated(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	old := &schema.Thread{ID: "t1", UserID: "u1", Name: "Old", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)}
	recent := &schema.Thread{ID: "t2", UserID: "u1", Name: "Recent", CreatedAt: now, UpdatedAt: now}
	foreign := &schema.Thread{ID: "t3", UserID: "u2", Name: "Other", CreatedAt: now, UpdatedAt: now}

	for _, thread := range []*schema.Thread{old, recent, foreign} {
		if _, err := db.UpsertThread(ctx, thread); err != nil {
			t.Fatalf("UpsertThread failed: %v", err)
		}
	}

	threads, err := db.FetchThreadsByUser(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("FetchThreadsByUser failed: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("expected 2 threads for u1, got %d", len(threads))
	}
	if threads[0].ID != "t2" {
		t.Errorf("expected most recently updated first, got %s", threads[0].ID)
	}
}

func TestFetchThreadsByUserOrdersMixedPrecision(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	// A whole-second timestamp next to a fractional one in the same second
	// exercises the string ordering of the updated_at column.
	older := &schema.Thread{ID: "t1", UserID: "u1", Name: "Older", CreatedAt: base, UpdatedAt: base}
	newer := &schema.Thread{ID: "t2", UserID: "u1", Name: "Newer", CreatedAt: base, UpdatedAt: base.Add(500 * time.Millisecond)}

	for _, thread := range []*schema.Thread{older, newer} {
		if _, err := db.UpsertThread(ctx, thread); err != nil {
			t.Fatalf("UpsertThread failed: %v", err)
		}
	}

	threads, err := db.FetchThreadsByUser(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("FetchThreadsByUser failed: %v", err)
	}
	if len(threads) != 2 || threads[0].ID != "t2" {
		t.Fatalf("expected t2 first, got %+v", threads)
	}
}

func TestQuerySelectOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertDashboard(ctx, testBoard("b1", "u1")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	result, err := db.Query(ctx, "select id, name from dashboards")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.RowCount() != 1 || len(result.Columns) != 2 {
		t.Errorf("unexpected result shape: %+v", result)
	}

	if _, err := db.Query(ctx, "delete from dashboards"); err == nil {
		t.Fatal("expected non-SELECT statement to be rejected")
	}
	if _, err := db.Query(ctx, "  UPDATE dashboards SET name = 'x'"); err == nil {
		t.Fatal("expected UPDATE to be rejected")
	}
}

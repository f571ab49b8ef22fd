package remote

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boardpilot/boardpilot/internal/schema"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB implements Store on an embedded SQLite database with WAL mode for
// concurrent access. It stands in for whatever shared store is configured;
// the sync engine only sees the Store interface.
type DB struct {
	conn *sql.DB
	path string
}

var _ Store = (*DB)(nil)

// Open creates a new store connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it will be created; call InitSchema before
// first use.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	store, err := remote.Open(".boardpilot/store.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the store schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS dashboards (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		widgets TEXT,  -- JSON array
		is_published INTEGER NOT NULL DEFAULT 0,
		is_template INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		dashboard_id TEXT,
		is_new INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dashboards_user ON dashboards(user_id);
	CREATE INDEX IF NOT EXISTS idx_dashboards_updated ON dashboards(updated_at);
	CREATE INDEX IF NOT EXISTS idx_dashboards_flags ON dashboards(is_published, is_template);
	CREATE INDEX IF NOT EXISTS idx_threads_user ON threads(user_id);
	CREATE INDEX IF NOT EXISTS idx_threads_updated ON threads(updated_at);
	`

	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// FetchDashboard implements Store.FetchDashboard.
func (db *DB) FetchDashboard(ctx context.Context, id string) (*schema.Dashboard, error) {
	query := `
	SELECT id, user_id, name, description, widgets,
	       is_published, is_template, created_at, updated_at
	FROM dashboards
	WHERE id = ?
	`

	row := db.conn.QueryRowContext(ctx, query, id)

	rec, err := scanDashboardRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dashboard %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard %s: %w", id, err)
	}

	return DashboardFromRecord(rec)
}

// FetchDashboardsWhere implements Store.FetchDashboardsWhere.
func (db *DB) FetchDashboardsWhere(ctx context.Context, filter DashboardFilter) ([]*schema.Dashboard, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.IsPublished != nil {
		conditions = append(conditions, "is_published = ?")
		args = append(args, boolToInt(*filter.IsPublished))
	}
	if filter.IsTemplate != nil {
		conditions = append(conditions, "is_template = ?")
		args = append(args, boolToInt(*filter.IsTemplate))
	}

	query := `
	SELECT id, user_id, name, description, widgets,
	       is_published, is_template, created_at, updated_at
	FROM dashboards
	`

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboards: %w", err)
	}
	defer rows.Close()

	var boards []*schema.Dashboard
	for rows.Next() {
		rec, err := scanDashboardRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		board, err := DashboardFromRecord(rec)
		if err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dashboards: %w", err)
	}

	return boards, nil
}

// UpsertDashboard implements Store.UpsertDashboard.
//
// If a dashboard with the same id exists, it is overwritten. This makes
// "create" double as "repair" for entities the store lost.
func (db *DB) UpsertDashboard(ctx context.Context, board *schema.Dashboard) (*schema.Dashboard, error) {
	if err := board.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dashboard: %w", err)
	}

	rec, err := DashboardToRecord(board)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO dashboards (
		id, user_id, name, description, widgets,
		is_published, is_template, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		name = excluded.name,
		description = excluded.description,
		widgets = excluded.widgets,
		is_published = excluded.is_published,
		is_template = excluded.is_template,
		updated_at = excluded.updated_at
	`

	_, err = db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Name,
		rec.Description,
		rec.Widgets,
		boolToInt(rec.IsPublished),
		boolToInt(rec.IsTemplate),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert dashboard %s: %w", rec.ID, err)
	}

	return db.FetchDashboard(ctx, rec.ID)
}

// DeleteDashboard implements Store.DeleteDashboard.
func (db *DB) DeleteDashboard(ctx context.Context, id, userID string) error {
	query := `DELETE FROM dashboards WHERE id = ? AND user_id = ?`
	_, err := db.conn.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete dashboard %s: %w", id, err)
	}
	return nil
}

// FetchThread implements Store.FetchThread.
func (db *DB) FetchThread(ctx context.Context, id string) (*schema.Thread, error) {
	query := `
	SELECT id, user_id, name, dashboard_id, is_new, created_at, updated_at
	FROM threads
	WHERE id = ?
	`

	row := db.conn.QueryRowContext(ctx, query, id)

	rec, err := scanThreadRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s: %w", id, err)
	}

	return ThreadFromRecord(rec)
}

// FetchThreadsByUser implements Store.FetchThreadsByUser.
func (db *DB) FetchThreadsByUser(ctx context.Context, userID string, limit int) ([]*schema.Thread, error) {
	query := `
	SELECT id, user_id, name, dashboard_id, is_new, created_at, updated_at
	FROM threads
	WHERE user_id = ?
	ORDER BY updated_at DESC
	`

	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var threads []*schema.Thread
	for rows.Next() {
		rec, err := scanThreadRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		thread, err := ThreadFromRecord(rec)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}

// UpsertThread implements Store.UpsertThread.
func (db *DB) UpsertThread(ctx context.Context, thread *schema.Thread) (*schema.Thread, error) {
	if err := thread.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thread: %w", err)
	}

	rec := ThreadToRecord(thread)

	query := `
	INSERT INTO threads (
		id, user_id, name, dashboard_id, is_new, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		name = excluded.name,
		dashboard_id = excluded.dashboard_id,
		is_new = excluded.is_new,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Name,
		rec.DashboardID,
		boolToInt(rec.IsNew),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert thread %s: %w", rec.ID, err)
	}

	return db.FetchThread(ctx, rec.ID)
}

// DeleteThread implements Store.DeleteThread.
func (db *DB) DeleteThread(ctx context.Context, id, userID string) error {
	query := `DELETE FROM threads WHERE id = ? AND user_id = ?`
	_, err := db.conn.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", id, err)
	}
	return nil
}

// scanDashboardRecord scans one dashboard row into its record form.
func scanDashboardRecord(scan func(dest ...interface{}) error) (*DashboardRecord, error) {
	var rec DashboardRecord
	var description, widgets sql.NullString
	var isPublished, isTemplate int

	err := scan(
		&rec.ID,
		&rec.UserID,
		&rec.Name,
		&description,
		&widgets,
		&isPublished,
		&isTemplate,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Description = description.String
	rec.Widgets = widgets.String
	rec.IsPublished = isPublished != 0
	rec.IsTemplate = isTemplate != 0

	return &rec, nil
}

// scanThreadRecord scans one thread row into its record form.
func scanThreadRecord(scan func(dest ...interface{}) error) (*ThreadRecord, error) {
	var rec ThreadRecord
	var dashboardID sql.NullString
	var isNew int

	err := scan(
		&rec.ID,
		&rec.UserID,
		&rec.Name,
		&dashboardID,
		&isNew,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.DashboardID = dashboardID.String
	rec.IsNew = isNew != 0

	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

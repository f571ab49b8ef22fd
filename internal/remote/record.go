package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boardpilot/boardpilot/internal/schema"
)

// timeLayout is RFC3339 with a fixed nine-digit fraction. RFC3339Nano trims
// trailing zeros, which breaks lexicographic ORDER BY on the timestamp
// columns ("...00Z" sorts after "...00.5Z"); the padded form keeps string
// order equal to time order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DashboardRecord is the row representation of a dashboard in the remote
// store: snake_case columns, RFC3339 timestamps, widgets as a JSON array.
type DashboardRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Widgets     string `json:"widgets"`
	IsPublished bool   `json:"is_published"`
	IsTemplate  bool   `json:"is_template"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ThreadRecord is the row representation of a thread in the remote store.
type ThreadRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	DashboardID string `json:"dashboard_id"`
	IsNew       bool   `json:"is_new"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// DashboardToRecord transcodes a dashboard entity to its row form.
// Missing timestamps are defaulted rather than sent as zero values.
func DashboardToRecord(board *schema.Dashboard) (*DashboardRecord, error) {
	b := *board
	b.SetDefaults()

	widgetsJSON, err := json.Marshal(b.Widgets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal widgets: %w", err)
	}

	return &DashboardRecord{
		ID:          b.ID,
		UserID:      b.UserID,
		Name:        b.Name,
		Description: b.Description,
		Widgets:     string(widgetsJSON),
		IsPublished: b.IsPublished,
		IsTemplate:  b.IsTemplate,
		CreatedAt:   b.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   b.UpdatedAt.UTC().Format(timeLayout),
	}, nil
}

// DashboardFromRecord transcodes a row back into a dashboard entity.
func DashboardFromRecord(rec *DashboardRecord) (*schema.Dashboard, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", rec.CreatedAt, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at %q: %w", rec.UpdatedAt, err)
	}

	board := &schema.Dashboard{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Name:        rec.Name,
		Description: rec.Description,
		Widgets:     []schema.Widget{},
		IsPublished: rec.IsPublished,
		IsTemplate:  rec.IsTemplate,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	if rec.Widgets != "" && rec.Widgets != "null" {
		if err := json.Unmarshal([]byte(rec.Widgets), &board.Widgets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal widgets: %w", err)
		}
	}

	return board, nil
}

// ThreadToRecord transcodes a thread entity to its row form.
func ThreadToRecord(thread *schema.Thread) *ThreadRecord {
	t := *thread
	t.SetDefaults()

	return &ThreadRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		Name:        t.Name,
		DashboardID: t.DashboardID,
		IsNew:       t.IsNew,
		CreatedAt:   t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   t.UpdatedAt.UTC().Format(timeLayout),
	}
}

// ThreadFromRecord transcodes a row back into a thread entity.
func ThreadFromRecord(rec *ThreadRecord) (*schema.Thread, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", rec.CreatedAt, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at %q: %w", rec.UpdatedAt, err)
	}

	return &schema.Thread{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Name:        rec.Name,
		DashboardID: rec.DashboardID,
		IsNew:       rec.IsNew,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// Package schema provides data structures for boardpilot workspace files.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WidgetType enumerates the supported widget kinds.
type WidgetType string

const (
	WidgetChart  WidgetType = "chart"
	WidgetTable  WidgetType = "table"
	WidgetMetric WidgetType = "metric"
	WidgetText   WidgetType = "text"
)

// Position is a widget's top-left grid coordinate on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a widget's footprint in canvas units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Widget is a single dashboard component. Config interpretation belongs to
// the rendering layer; the core only carries it.
type Widget struct {
	ID       string                 `json:"id"`
	Type     WidgetType             `json:"type"`
	Title    string                 `json:"title"`
	Position Position               `json:"position"`
	Size     Size                   `json:"size"`
	Config   map[string]interface{} `json:"config,omitempty"`
}

// Dashboard represents a dashboard stored as an individual JSON file in
// boards/*.json. The structure is flat with last-write-wins semantics:
// UpdatedAt resolves conflicts between the local copy and the remote store.
type Dashboard struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Widgets     []Widget `json:"widgets"`

	IsPublished bool `json:"is_published"`
	IsTemplate  bool `json:"is_template"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Dashboard has valid field values.
func (d *Dashboard) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(d.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(d.Name))
	}
	if d.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if d.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	if d.UpdatedAt.Before(d.CreatedAt) {
		return fmt.Errorf("updated_at %s precedes created_at %s", d.UpdatedAt.Format(time.RFC3339), d.CreatedAt.Format(time.RFC3339))
	}
	for i := range d.Widgets {
		if err := d.Widgets[i].Validate(); err != nil {
			return fmt.Errorf("widget %d: %w", i+1, err)
		}
	}
	return nil
}

// Validate checks a single widget's required fields and per-type config.
func (w *Widget) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("id is required")
	}
	if w.Title == "" {
		return fmt.Errorf("title is required")
	}
	switch w.Type {
	case WidgetChart, WidgetTable, WidgetMetric, WidgetText:
	default:
		return fmt.Errorf("invalid widget type %q", w.Type)
	}
	if w.Size.Width <= 0 || w.Size.Height <= 0 {
		return fmt.Errorf("size must be positive (got %gx%g)", w.Size.Width, w.Size.Height)
	}
	switch w.Type {
	case WidgetChart, WidgetTable, WidgetMetric:
		if w.Config["dataSource"] == nil && w.Config["query"] == nil {
			return fmt.Errorf("%s widget requires a dataSource or query", w.Type)
		}
	case WidgetText:
		if w.Config["content"] == nil {
			return fmt.Errorf("text widget requires content")
		}
	}
	return nil
}

// HasLocalEdits reports whether this copy was modified after it was created,
// meaning it is not a pristine fetch and may carry unsynced changes.
func (d *Dashboard) HasLocalEdits() bool {
	return d.UpdatedAt.After(d.CreatedAt)
}

// Filename returns the canonical filename for this dashboard: {id}.json
func (d *Dashboard) Filename() string {
	return fmt.Sprintf("%s.json", d.ID)
}

// SetDefaults applies default values for optional fields.
func (d *Dashboard) SetDefaults() {
	if d.Widgets == nil {
		d.Widgets = []Widget{}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
}

// Touch sets UpdatedAt to current time.
// This should be called whenever any field is modified.
func (d *Dashboard) Touch() {
	d.UpdatedAt = time.Now()
}

// ReadDashboardFile reads and parses a dashboard JSON file from the given path.
func ReadDashboardFile(path string) (*Dashboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboard file %s: %w", path, err)
	}

	var board Dashboard
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("failed to parse dashboard file %s: %w", path, err)
	}

	if err := board.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dashboard file %s: %w", path, err)
	}

	return &board, nil
}

// WriteDashboardFile writes a Dashboard to disk as JSON.
// The file is written to boardsDir/{id}.json with pretty-printed formatting.
func WriteDashboardFile(boardsDir string, board *Dashboard) error {
	if err := board.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid dashboard: %w", err)
	}

	if err := os.MkdirAll(boardsDir, 0755); err != nil {
		return fmt.Errorf("failed to create boards directory: %w", err)
	}

	data, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard %s: %w", board.ID, err)
	}

	path := filepath.Join(boardsDir, board.Filename())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dashboard file %s: %w", path, err)
	}

	return nil
}

// RemoveDashboardFile deletes a dashboard's file from the workspace.
// Returns nil if the file doesn't exist (idempotent).
func RemoveDashboardFile(boardsDir, id string) error {
	path := filepath.Join(boardsDir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove dashboard file %s: %w", path, err)
	}
	return nil
}

// ReadAllDashboardFiles reads all dashboard files from the given directory.
// Invalid files are skipped with a warning to stderr.
func ReadAllDashboardFiles(boardsDir string) ([]*Dashboard, error) {
	entries, err := os.ReadDir(boardsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Dashboard{}, nil // Empty workspace is valid
		}
		return nil, fmt.Errorf("failed to read boards directory: %w", err)
	}

	var boards []*Dashboard
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(boardsDir, entry.Name())
		board, err := ReadDashboardFile(path)
		if err != nil {
			// Log warning but continue processing other files
			fmt.Fprintf(os.Stderr, "Warning: skipping invalid dashboard file %s: %v\n", entry.Name(), err)
			continue
		}

		boards = append(boards, board)
	}

	return boards, nil
}

package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validDashboard() *Dashboard {
	now := time.Now().UTC()
	return &Dashboard{
		ID:     "b1",
		UserID: "u1",
		Name:   "Revenue",
		Widgets: []Widget{{
			ID:       "w1",
			Type:     WidgetMetric,
			Title:    "Total",
			Position: Position{X: 0, Y: 0},
			Size:     Size{Width: 280, Height: 160},
			Config:   map[string]interface{}{"dataSource": "sales"},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestDashboardValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Dashboard)
		wantErr string
	}{
		{"valid", func(d *Dashboard) {}, ""},
		{"missing id", func(d *Dashboard) { d.ID = "" }, "id is required"},
		{"missing name", func(d *Dashboard) { d.Name = "" }, "name is required"},
		{"name too long", func(d *Dashboard) { d.Name = strings.Repeat("x", 201) }, "200 characters"},
		{"zero created", func(d *Dashboard) { d.CreatedAt = time.Time{} }, "created_at is required"},
		{"updated before created", func(d *Dashboard) {
			d.UpdatedAt = d.CreatedAt.Add(-time.Minute)
		}, "precedes"},
		{"bad widget", func(d *Dashboard) { d.Widgets[0].Title = "" }, "widget 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := validDashboard()
			tt.mutate(board)
			err := board.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWidgetValidatePerTypeConfig(t *testing.T) {
	tests := []struct {
		name    string
		widget  Widget
		wantErr bool
	}{
		{
			name: "chart with query",
			widget: Widget{
				ID: "w1", Type: WidgetChart, Title: "Trend",
				Size:   Size{Width: 500, Height: 300},
				Config: map[string]interface{}{"query": "select 1"},
			},
		},
		{
			name: "chart without data binding",
			widget: Widget{
				ID: "w1", Type: WidgetChart, Title: "Trend",
				Size: Size{Width: 500, Height: 300},
			},
			wantErr: true,
		},
		{
			name: "text with content",
			widget: Widget{
				ID: "w1", Type: WidgetText, Title: "Notes",
				Size:   Size{Width: 400, Height: 200},
				Config: map[string]interface{}{"content": "hello"},
			},
		},
		{
			name: "text without content",
			widget: Widget{
				ID: "w1", Type: WidgetText, Title: "Notes",
				Size: Size{Width: 400, Height: 200},
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			widget: Widget{
				ID: "w1", Type: WidgetType("gauge"), Title: "X",
				Size: Size{Width: 100, Height: 100},
			},
			wantErr: true,
		},
		{
			name: "non-positive size",
			widget: Widget{
				ID: "w1", Type: WidgetMetric, Title: "X",
				Size:   Size{Width: 0, Height: 100},
				Config: map[string]interface{}{"dataSource": "s"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.widget.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHasLocalEdits(t *testing.T) {
	board := validDashboard()
	if board.HasLocalEdits() {
		t.Error("pristine copy must not report local edits")
	}

	board.UpdatedAt = board.CreatedAt.Add(time.Second)
	if !board.HasLocalEdits() {
		t.Error("edited copy must report local edits")
	}
}

func TestSetDefaults(t *testing.T) {
	board := &Dashboard{ID: "b1", Name: "X"}
	board.SetDefaults()

	if board.Widgets == nil {
		t.Error("expected widgets initialized")
	}
	if board.CreatedAt.IsZero() {
		t.Error("expected created_at filled")
	}
	if !board.UpdatedAt.Equal(board.CreatedAt) {
		t.Error("expected updated_at to match created_at")
	}
}

func TestWriteAndReadDashboardFile(t *testing.T) {
	dir := t.TempDir()
	board := validDashboard()

	if err := WriteDashboardFile(dir, board); err != nil {
		t.Fatalf("WriteDashboardFile failed: %v", err)
	}

	read, err := ReadDashboardFile(filepath.Join(dir, board.Filename()))
	if err != nil {
		t.Fatalf("ReadDashboardFile failed: %v", err)
	}

	if read.ID != board.ID || read.Name != board.Name {
		t.Errorf("round trip mismatch: %+v", read)
	}
	if len(read.Widgets) != 1 || read.Widgets[0].Type != WidgetMetric {
		t.Errorf("widgets lost in round trip: %+v", read.Widgets)
	}
}

func TestWriteDashboardFileRejectsInvalid(t *testing.T) {
	board := validDashboard()
	board.Name = ""

	if err := WriteDashboardFile(t.TempDir(), board); err == nil {
		t.Fatal("expected invalid dashboard to be rejected")
	}
}

func TestRemoveDashboardFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	board := validDashboard()
	if err := WriteDashboardFile(dir, board); err != nil {
		t.Fatalf("WriteDashboardFile failed: %v", err)
	}

	if err := RemoveDashboardFile(dir, board.ID); err != nil {
		t.Fatalf("RemoveDashboardFile failed: %v", err)
	}
	// Second removal of a missing file is fine.
	if err := RemoveDashboardFile(dir, board.ID); err != nil {
		t.Fatalf("expected idempotent removal, got %v", err)
	}
}

func TestReadAllDashboardFilesSkipsInvalid(t *testing.T) {
	dir := t.TempDir()

	good := validDashboard()
	if err := WriteDashboardFile(dir, good); err != nil {
		t.Fatalf("WriteDashboardFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write broken file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("failed to write text file: %v", err)
	}

	boards, err := ReadAllDashboardFiles(dir)
	if err != nil {
		t.Fatalf("ReadAllDashboardFiles failed: %v", err)
	}
	if len(boards) != 1 || boards[0].ID != good.ID {
		t.Fatalf("expected only the valid dashboard, got %+v", boards)
	}
}

func TestReadAllDashboardFilesMissingDir(t *testing.T) {
	boards, err := ReadAllDashboardFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing workspace must be empty, not an error: %v", err)
	}
	if len(boards) != 0 {
		t.Fatalf("expected empty result, got %d", len(boards))
	}
}

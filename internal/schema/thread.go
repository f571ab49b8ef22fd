package schema

import (
	"fmt"
	"time"
)

// Thread is the persisted identity of a conversation with the copilot.
//
// A session may start with no thread at all: the ID stays empty until the
// agent assigns one on the first successful exchange. DashboardID is a weak
// reference - the dashboard can be deleted independently.
type Thread struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	DashboardID string    `json:"dashboard_id,omitempty"`
	IsNew       bool      `json:"is_new"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks if the Thread has valid field values.
func (t *Thread) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Thread) SetDefaults() {
	if t.Name == "" {
		t.Name = "New conversation"
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
}

package session

import (
	"encoding/json"
	"fmt"

	"github.com/boardpilot/boardpilot/internal/agent"
	"github.com/boardpilot/boardpilot/internal/schema"
)

// Action is the closed set of structured requests the agent can route to
// the session. Each variant carries its own typed payload; the compiler
// enforces exhaustive handling in the controller's switch.
type Action interface {
	// ActionName returns the wire name of the action.
	ActionName() string

	isAction()
}

// CreateDashboardAction asks for a new dashboard.
type CreateDashboardAction struct {
	Name        string
	Description string
}

// UpdateDashboardAction patches fields on an existing dashboard.
type UpdateDashboardAction struct {
	DashboardID string
	Name        *string
	Description *string
}

// AddWidgetAction inserts a widget into a dashboard. When X and Y are nil
// the layout engine computes the position.
type AddWidgetAction struct {
	DashboardID string
	Type        schema.WidgetType
	Title       string
	X           *float64
	Y           *float64
	Config      map[string]interface{}
}

// RunQueryAction executes a read-only query against the data store.
type RunQueryAction struct {
	Query string
}

// ExportCSVAction exports query results as CSV. Local-only data transform:
// no remote effect.
type ExportCSVAction struct {
	Query string
}

func (CreateDashboardAction) ActionName() string { return "create_dashboard" }
func (UpdateDashboardAction) ActionName() string { return "update_dashboard" }
func (AddWidgetAction) ActionName() string       { return "add_widget" }
func (RunQueryAction) ActionName() string        { return "run_query" }
func (ExportCSVAction) ActionName() string       { return "export_csv" }

func (CreateDashboardAction) isAction() {}
func (UpdateDashboardAction) isAction() {}
func (AddWidgetAction) isAction()       {}
func (RunQueryAction) isAction()        {}
func (ExportCSVAction) isAction()       {}

// ActionError reports a routed action whose payload was missing required
// fields or otherwise unusable. The single action is skipped with a
// notification; the rest of the message processing continues.
type ActionError struct {
	Action string
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s rejected: %s", e.Action, e.Reason)
}

// DecodeAction converts a raw tool call into its typed action variant.
func DecodeAction(tc agent.ToolCall) (Action, error) {
	switch tc.Name {
	case "create_dashboard":
		var payload struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(tc.Input, &payload); err != nil {
			return nil, &ActionError{Action: tc.Name, Reason: err.Error()}
		}
		if payload.Name == "" {
			return nil, &ActionError{Action: tc.Name, Reason: "name is required"}
		}
		return CreateDashboardAction{Name: payload.Name, Description: payload.Description}, nil

	case "update_dashboard":
		var payload struct {
			DashboardID string  `json:"dashboard_id"`
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := json.Unmarshal(tc.Input, &payload); err != nil {
			return nil, &ActionError{Action: tc.Name, Reason: err.Error()}
		}
		if payload.DashboardID == "" {
			return nil, &ActionError{Action: tc.Name, Reason: "dashboard_id is required"}
		}
		return UpdateDashboardAction{
			DashboardID: payload.DashboardID,
			Name:        payload.Name,
			Description: payload.Description,
		}, nil

	case "add_widget":
		var payload struct {
			DashboardID string                 `json:"dashboard_id"`
			Type        string                 `json:"type"`
			Title       string                 `json:"title"`
			X           *float64               `json:"x"`
			Y           *float64               `json:"y"`
			Config      map[string]interface{} `json:"config"`
		}
		if err := json.Unmarshal(tc.Input, &payload); err != nil {
			return nil, &ActionError{Action: tc.Name, Reason: err.Error()}
		}
		if payload.DashboardID == "" {
			return nil, &ActionError{Action: tc.Name, Reason: "dashboard_id is required"}
		}
		if payload.Title == "" {
			return nil, &ActionError{Action: tc.Name, Reason: "title is required"}
		}
		if (payload.X == nil) != (payload.Y == nil) {
			return nil, &ActionError{Action: tc.Name, Reason: "x and y must be supplied together"}
		}
		return AddWidgetAction{
			DashboardID: payload.DashboardID,
			Type:        schema.WidgetType(payload.Type),
			Title:       payload.Title,
			X:           payload.X,
			Y:           payload.Y,
			Config:      payload.Config,
		}, nil

	case "run_query":
		var payload struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(tc.Input, &payload); err != nil {
			return nil, &ActionError{Action: tc.Name, Reason: err.Error()}
		}
		if payload.Query == "" {
			return nil, &ActionError{Action: tc.Name, Reason: "query is required"}
		}
		return RunQueryAction{Query: payload.Query}, nil

	case "export_csv":
		var payload struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(tc.Input, &payload); err != nil {
			return nil, &ActionError{Action: tc.Name, Reason: err.Error()}
		}
		if payload.Query == "" {
			return nil, &ActionError{Action: tc.Name, Reason: "query is required"}
		}
		return ExportCSVAction{Query: payload.Query}, nil

	default:
		return nil, &ActionError{Action: tc.Name, Reason: "unknown action"}
	}
}

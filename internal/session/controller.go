// Package session orchestrates one conversation with the copilot: thread
// lifecycle, the typing/loading state machine, exactly-once thread naming,
// and routing of structured agent actions to the sync engine and layout
// allocator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/boardpilot/boardpilot/internal/agent"
	"github.com/boardpilot/boardpilot/internal/layout"
	"github.com/boardpilot/boardpilot/internal/notify"
	"github.com/boardpilot/boardpilot/internal/remote"
	"github.com/boardpilot/boardpilot/internal/schema"
	"github.com/boardpilot/boardpilot/internal/stream"
	boardsync "github.com/boardpilot/boardpilot/internal/sync"
)

// State is the controller's lifecycle phase.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StateInitializing     State = "initializing"
	StateReadyEmpty       State = "ready-empty"
	StateReadyWithHistory State = "ready-with-history"
	StateSending          State = "sending"
	StateError            State = "error"
)

// ThreadProvenance records how the controller came to hold its thread id.
// Auto-naming only fires for agent-assigned threads.
type ThreadProvenance string

const (
	ProvenanceNone          ThreadProvenance = "none"
	ProvenancePreexisting   ThreadProvenance = "preexisting"
	ProvenanceAgentAssigned ThreadProvenance = "agent-assigned"
)

// DefaultThreadName is used when the first message strips down to nothing.
const DefaultThreadName = "New conversation"

// ErrEmptyMessage rejects a blank submit as a no-op.
var ErrEmptyMessage = errors.New("message is empty")

// ErrSendInFlight rejects a second submit while one is still streaming.
var ErrSendInFlight = errors.New("a send is already in flight")

// StreamError wraps an agent stream failure. The user's input is preserved
// for resubmission; partial progress stays in the timeline.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("agent stream failed: %v", e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

// QueryRunner is the read-only query capability the RunQuery action uses.
// *remote.DB satisfies it.
type QueryRunner interface {
	Query(ctx context.Context, stmt string) (*remote.QueryResult, error)
}

// Config holds construction parameters for a Controller.
type Config struct {
	// UserID is the authenticated user. Empty blocks all send operations.
	UserID string

	// ThreadID is a pre-existing thread to resume (empty = anonymous).
	ThreadID string

	// DashboardID optionally links the thread to a dashboard.
	DashboardID string

	// BoardsDir is the local workspace for optimistic dashboard writes
	// (empty = no local apply).
	BoardsDir string

	// ExportDir receives CSV export files (empty = current directory).
	ExportDir string

	// HistoryTimeout bounds the wait for history before the controller
	// reports ready-empty. Zero means 3 seconds.
	HistoryTimeout time.Duration

	// Logger for session activity (nil = stderr default).
	Logger *log.Logger
}

// Controller drives one conversation session.
type Controller struct {
	store    remote.Store
	engine   boardsync.Engine
	agent    agent.Stream
	notifier notify.Notifier
	queries  QueryRunner
	logger   *log.Logger
	now      func() time.Time
	newID    func() string

	userID      string
	boardsDir   string
	exportDir   string
	historyWait time.Duration

	mu             stdsync.Mutex
	state          State
	threadID       string
	dashboardID    string
	provenance     ThreadProvenance
	events         []stream.RawEvent
	timeline       []stream.DisplayMessage
	lastErr        error
	typing         bool
	namingInFlight bool

	historyTimer *time.Timer
	streamCancel context.CancelFunc
}

// New creates a session controller.
//
// The store, engine, agent stream, and notifier are required; queries may
// be nil when no data store is attached (the RunQuery action then fails
// with a notification instead of a crash).
func New(store remote.Store, engine boardsync.Engine, agentStream agent.Stream, notifier notify.Notifier, queries QueryRunner, cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	if cfg.HistoryTimeout == 0 {
		cfg.HistoryTimeout = 3 * time.Second
	}

	provenance := ProvenanceNone
	if cfg.ThreadID != "" {
		provenance = ProvenancePreexisting
	}

	return &Controller{
		store:       store,
		engine:      engine,
		agent:       agentStream,
		notifier:    notifier,
		queries:     queries,
		logger:      cfg.Logger,
		now:         time.Now,
		newID:       uuid.NewString,
		userID:      cfg.UserID,
		boardsDir:   cfg.BoardsDir,
		exportDir:   cfg.ExportDir,
		historyWait: cfg.HistoryTimeout,
		state:       StateUninitialized,
		threadID:    cfg.ThreadID,
		dashboardID: cfg.DashboardID,
		provenance:  provenance,
	}
}

// Init moves the controller from uninitialized to initializing and kicks
// off the thread-loading phase. If the timeline is still empty when the
// bounded wait expires, the controller reports ready-empty rather than
// blocking indefinitely on a slow fetch.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return fmt.Errorf("cannot initialize from state %s", c.state)
	}
	c.state = StateInitializing
	threadID := c.threadID
	c.mu.Unlock()

	if threadID != "" {
		if _, err := c.store.FetchThread(ctx, threadID); err != nil && !remote.IsNotFound(err) {
			c.mu.Lock()
			c.state = StateError
			c.lastErr = err
			c.mu.Unlock()
			c.notifier.Notify(notify.Error, fmt.Sprintf("failed to load thread: %v", err))
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timeline) > 0 {
		c.state = StateReadyWithHistory
		return nil
	}

	// Fire-once timer; cancelled if history arrives first.
	c.historyTimer = time.AfterFunc(c.historyWait, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == StateInitializing && len(c.timeline) == 0 {
			c.state = StateReadyEmpty
		}
	})
	return nil
}

// Replay feeds recovered history events into the projector, e.g. when a
// resumed thread's backlog arrives from the streaming layer.
func (c *Controller) Replay(ctx context.Context, events []stream.RawEvent) {
	c.mu.Lock()
	c.events = append(c.events, events...)
	c.mu.Unlock()
	c.refreshTimeline(ctx)
}

// Send submits one user message and consumes the agent's response stream.
//
// Blank input and missing user context are rejected as no-ops. The state
// returns to ready-with-history when the stream settles, success or not;
// failures populate the last-error field and the input's effects stay in
// the timeline for resubmission.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if c.userID == "" {
		return boardsync.ErrNotAuthenticated
	}

	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	history := make([]stream.RawEvent, len(c.events))
	copy(history, c.events)
	threadID := c.threadID

	c.state = StateSending
	c.typing = true
	c.events = append(c.events, stream.RawEvent{
		MessageID: c.newID(),
		Role:      "human",
		Content:   text,
	})

	subCtx, cancel := context.WithCancel(ctx)
	c.streamCancel = cancel
	c.mu.Unlock()
	defer cancel()

	c.refreshTimeline(ctx)

	events, err := c.agent.Submit(subCtx, text, agent.SubmitOptions{
		ThreadID: threadID,
		History:  history,
	})
	if err != nil {
		streamErr := &StreamError{Err: err}
		c.settleSend(streamErr)
		c.notifier.Notify(notify.Error, streamErr.Error())
		return streamErr
	}

	var sendErr error
	for ev := range events {
		switch ev.Kind {
		case agent.KindMessage:
			c.mu.Lock()
			c.events = append(c.events, ev.Message)
			c.mu.Unlock()
			c.refreshTimeline(ctx)

		case agent.KindThreadID:
			c.adoptThreadID(ctx, ev.ThreadID)

		case agent.KindToolCall:
			action, err := DecodeAction(ev.Tool)
			if err != nil {
				// Skip this one action; the rest of the message
				// processing continues.
				c.logger.Printf("Rejected action %s: %v", ev.Tool.Name, err)
				c.notifier.Notify(notify.Error, err.Error())
				continue
			}
			c.handleAction(ctx, action)

		case agent.KindError:
			sendErr = &StreamError{Err: ev.Err}
			c.notifier.Notify(notify.Error, sendErr.Error())
		}
	}

	c.settleSend(sendErr)
	c.refreshTimeline(ctx)
	return sendErr
}

// settleSend finishes a send regardless of its outcome.
func (c *Controller) settleSend(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = false
	c.state = StateReadyWithHistory
	if err != nil {
		c.lastErr = err
	}
	c.streamCancel = nil
}

// Close tears the session down: the stream subscription is cancelled and
// the typing indicator stops, but the event log stays intact so a still
// live session can be re-projected.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.historyTimer != nil {
		c.historyTimer.Stop()
		c.historyTimer = nil
	}
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
	c.typing = false
}

// adoptThreadID switches to an agent-assigned thread id and persists the
// new thread record.
func (c *Controller) adoptThreadID(ctx context.Context, id string) {
	c.mu.Lock()
	if id == "" || id == c.threadID {
		c.mu.Unlock()
		return
	}
	c.threadID = id
	c.provenance = ProvenanceAgentAssigned
	dashboardID := c.dashboardID
	c.mu.Unlock()

	now := c.now()
	thread := &schema.Thread{
		ID:          id,
		UserID:      c.userID,
		Name:        DefaultThreadName,
		DashboardID: dashboardID,
		IsNew:       true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := c.store.UpsertThread(ctx, thread); err != nil {
		c.logger.Printf("Failed to persist thread %s: %v", id, err)
		c.notifier.Notify(notify.Error, fmt.Sprintf("failed to persist thread: %v", err))
		return
	}
	c.logger.Printf("Adopted agent-assigned thread: %s", id)
}

// refreshTimeline recomputes the display timeline from the raw event log
// and runs the transitions that depend on timeline growth.
func (c *Controller) refreshTimeline(ctx context.Context) {
	c.mu.Lock()
	c.timeline = stream.Project(c.events)
	if c.state == StateInitializing && len(c.timeline) > 0 {
		c.state = StateReadyWithHistory
		if c.historyTimer != nil {
			c.historyTimer.Stop()
			c.historyTimer = nil
		}
	}
	c.mu.Unlock()

	c.maybeAutoName(ctx)
}

// maybeAutoName derives a thread name from the first user message, exactly
// once per thread.
//
// The IsNew check runs against the freshly fetched persisted state, not a
// cached copy: two rapid timeline-growth events must not both conclude
// that naming is still pending. A single-flight guard covers the window
// while the update round-trip is in the air.
func (c *Controller) maybeAutoName(ctx context.Context) {
	c.mu.Lock()
	if c.namingInFlight ||
		c.provenance != ProvenanceAgentAssigned ||
		c.threadID == "" ||
		len(c.timeline) == 0 ||
		c.timeline[0].Role != stream.RoleUser {
		c.mu.Unlock()
		return
	}
	c.namingInFlight = true
	threadID := c.threadID
	firstContent := c.timeline[0].Content
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.namingInFlight = false
		c.mu.Unlock()
	}()

	thread, err := c.store.FetchThread(ctx, threadID)
	if err != nil {
		c.logger.Printf("Auto-name fetch failed for thread %s: %v", threadID, err)
		return
	}
	if !thread.IsNew {
		return
	}

	// Name and flag clear in a single update.
	thread.Name = DeriveThreadName(firstContent)
	thread.IsNew = false
	thread.UpdatedAt = c.now()
	if _, err := c.store.UpsertThread(ctx, thread); err != nil {
		c.logger.Printf("Auto-name update failed for thread %s: %v", threadID, err)
		return
	}
	c.logger.Printf("Named thread %s: %q", threadID, thread.Name)
}

// DeriveThreadName builds a thread name from the first 100 characters of
// the first message, stripped of non-alphanumeric characters. Falls back
// to DefaultThreadName when nothing survives.
func DeriveThreadName(content string) string {
	runes := []rune(content)
	if len(runes) > 100 {
		runes = runes[:100]
	}

	var b strings.Builder
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), " ")
	if name == "" {
		return DefaultThreadName
	}
	return name
}

// handleAction routes one decoded action. Every handler reports its
// outcome through the notifier; a failed action never aborts the overall
// send flow.
func (c *Controller) handleAction(ctx context.Context, action Action) {
	switch a := action.(type) {
	case CreateDashboardAction:
		c.createDashboard(ctx, a)
	case UpdateDashboardAction:
		c.updateDashboard(ctx, a)
	case AddWidgetAction:
		c.addWidget(ctx, a)
	case RunQueryAction:
		c.runQuery(ctx, a)
	case ExportCSVAction:
		c.exportCSV(ctx, a)
	}
}

func (c *Controller) createDashboard(ctx context.Context, a CreateDashboardAction) {
	now := c.now()
	board := &schema.Dashboard{
		ID:          c.newID(),
		UserID:      c.userID,
		Name:        a.Name,
		Description: a.Description,
		Widgets:     []schema.Widget{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, err := c.engine.Create(ctx, board)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("failed to create dashboard %q: %v", a.Name, err))
		return
	}

	c.applyLocal(stored)
	c.notifier.Notify(notify.Success, fmt.Sprintf("created dashboard %q", stored.Name))
}

func (c *Controller) updateDashboard(ctx context.Context, a UpdateDashboardAction) {
	board, err := c.store.FetchDashboard(ctx, a.DashboardID)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("failed to load dashboard %s: %v", a.DashboardID, err))
		return
	}

	patch := boardsync.DashboardPatch{
		Name:        &board.Name,
		Description: &board.Description,
		Widgets:     &board.Widgets,
		IsPublished: &board.IsPublished,
		IsTemplate:  &board.IsTemplate,
	}
	if a.Name != nil {
		patch.Name = a.Name
	}
	if a.Description != nil {
		patch.Description = a.Description
	}

	stored, err := c.engine.Update(ctx, a.DashboardID, patch)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("failed to update dashboard %s: %v", a.DashboardID, err))
		return
	}

	c.applyLocal(stored)
	c.notifier.Notify(notify.Success, fmt.Sprintf("updated dashboard %q", stored.Name))
}

func (c *Controller) addWidget(ctx context.Context, a AddWidgetAction) {
	board, err := c.store.FetchDashboard(ctx, a.DashboardID)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("failed to load dashboard %s: %v", a.DashboardID, err))
		return
	}

	footprint := layout.FootprintFor(a.Type)
	var pos schema.Position
	if a.X != nil && a.Y != nil {
		pos = schema.Position{X: *a.X, Y: *a.Y}
	} else {
		pos = layout.FindPosition(board.Widgets, footprint)
	}

	widget := schema.Widget{
		ID:       c.newID(),
		Type:     a.Type,
		Title:    a.Title,
		Position: pos,
		Size:     footprint,
		Config:   a.Config,
	}
	if err := widget.Validate(); err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("invalid widget %q: %v", a.Title, err))
		return
	}

	widgets := append(board.Widgets, widget)
	patch := boardsync.DashboardPatch{
		Name:        &board.Name,
		Description: &board.Description,
		Widgets:     &widgets,
		IsPublished: &board.IsPublished,
		IsTemplate:  &board.IsTemplate,
	}

	stored, err := c.engine.Update(ctx, a.DashboardID, patch)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("failed to add widget to %s: %v", a.DashboardID, err))
		return
	}

	c.applyLocal(stored)
	c.notifier.Notify(notify.Success, fmt.Sprintf("added %s widget %q", widget.Type, widget.Title))
}

func (c *Controller) runQuery(ctx context.Context, a RunQueryAction) {
	if c.queries == nil {
		c.notifier.Notify(notify.Error, "no data store attached for queries")
		return
	}

	result, err := c.queries.Query(ctx, a.Query)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("query failed: %v", err))
		return
	}

	c.mu.Lock()
	c.events = append(c.events, stream.RawEvent{
		MessageID: c.newID(),
		Role:      "tool",
		Content:   fmt.Sprintf("query returned %d rows (%d columns)", result.RowCount(), len(result.Columns)),
	})
	c.mu.Unlock()
	c.refreshTimeline(ctx)

	c.notifier.Notify(notify.Success, fmt.Sprintf("query returned %d rows", result.RowCount()))
}

func (c *Controller) exportCSV(ctx context.Context, a ExportCSVAction) {
	if c.queries == nil {
		c.notifier.Notify(notify.Error, "no data store attached for export")
		return
	}

	result, err := c.queries.Query(ctx, a.Query)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("export query failed: %v", err))
		return
	}

	content, err := EncodeCSV(result)
	if err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("export failed: %v", err))
		return
	}

	dir := c.exportDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("export-%s.csv", c.newID()))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		c.notifier.Notify(notify.Error, fmt.Sprintf("failed to write export: %v", err))
		return
	}

	c.notifier.Notify(notify.Success, fmt.Sprintf("exported %d rows to %s", result.RowCount(), path))
}

// applyLocal mirrors a stored dashboard into the local workspace.
// Local apply is best-effort: a failed write is logged, not fatal, because
// the next reconcile pass will repair the copy.
func (c *Controller) applyLocal(board *schema.Dashboard) {
	if c.boardsDir == "" {
		return
	}
	if err := schema.WriteDashboardFile(c.boardsDir, board); err != nil {
		c.logger.Printf("Failed to apply dashboard %s locally: %v", board.ID, err)
	}
}

// State returns the controller's current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ThreadID returns the current thread id ("" for an anonymous session).
func (c *Controller) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// Provenance returns how the current thread id was obtained.
func (c *Controller) Provenance() ThreadProvenance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provenance
}

// Timeline returns a copy of the projected display timeline.
func (c *Controller) Timeline() []stream.DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]stream.DisplayMessage, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// Typing reports whether the typing indicator is active.
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// LastError returns the most recent send or init failure.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

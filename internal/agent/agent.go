// Package agent provides the streaming copilot capability the session
// controller consumes.
//
// A Submit call yields a channel of events: message revisions (partial
// assistant text keyed by message id), structured tool calls, an out-of-band
// thread-id assignment, and a terminal error event when the underlying call
// failed. The channel is closed when the stream settles either way.
package agent

import (
	"context"

	"github.com/boardpilot/boardpilot/internal/stream"
)

// EventKind discriminates stream events.
type EventKind string

const (
	// KindMessage carries a full or partial message revision.
	KindMessage EventKind = "message"

	// KindThreadID carries a newly assigned thread id.
	KindThreadID EventKind = "thread_id"

	// KindToolCall carries a structured action request from the agent.
	KindToolCall EventKind = "tool_call"

	// KindError carries the stream's terminal failure.
	KindError EventKind = "error"
)

// ToolCall is a structured action request emitted by the agent.
// The session layer decodes Input into its typed action payloads.
type ToolCall struct {
	ID    string
	Name  string
	Input []byte
}

// Event is one item of a submit stream.
type Event struct {
	Kind     EventKind
	Message  stream.RawEvent
	ThreadID string
	Tool     ToolCall
	Err      error
}

// SubmitOptions configures one Submit call.
type SubmitOptions struct {
	// ThreadID is the existing thread, if any. When empty the stream
	// emits a KindThreadID event once the agent assigns one.
	ThreadID string

	// History is the prior conversation replayed to the agent.
	History []stream.RawEvent

	// System overrides the default system prompt (empty = default).
	System string
}

// Stream is the agent capability boundary.
type Stream interface {
	// Submit sends one user message and returns the event stream for the
	// agent's response. The returned channel is closed when the exchange
	// settles; a KindError event precedes the close on failure.
	Submit(ctx context.Context, text string, opts SubmitOptions) (<-chan Event, error)
}

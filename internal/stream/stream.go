// Package stream projects the raw agent event log into a display timeline.
//
// The raw sequence is append-only but messy: reconnects may redeliver events
// already seen, and an in-flight assistant message arrives as a series of
// revisions keyed by message id, each superseding the last. Projection is a
// pure function of the whole event log - no hidden incremental state - so
// re-running it on a superset of previously seen events reproduces the old
// output as a prefix plus the new messages.
package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role tags a display message for rendering.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RawEvent is one entry of the append-only agent event log.
type RawEvent struct {
	// MessageID groups revisions of the same logical message.
	MessageID string `json:"message_id"`
	// Role is the wire role: "human" maps to user, everything else
	// (ai, assistant, tool, system) to assistant.
	Role string `json:"role"`
	// Content is the message text as of this revision. A later revision
	// for the same MessageID supersedes it entirely.
	Content string `json:"content"`
}

// SegmentKind classifies a piece of assistant sub-content.
type SegmentKind string

const (
	SegmentText       SegmentKind = "text"
	SegmentToolCall   SegmentKind = "tool_call"
	SegmentToolResult SegmentKind = "tool_result"
)

// Segment is one structured piece of an assistant message.
type Segment struct {
	Kind      SegmentKind     `json:"kind"`
	Text      string          `json:"text,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
}

// DisplayMessage is one entry of the projected conversation timeline.
// Display messages are never mutated in place; every projection run
// recomputes the full ordered sequence.
type DisplayMessage struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	Segments []Segment `json:"segments,omitempty"`
	// Warning is set when sub-content extraction failed and the message
	// degraded to plain text instead of being dropped.
	Warning string `json:"warning,omitempty"`
}

// Project collapses the raw event log into an ordered display timeline.
//
// Events are grouped by message id keeping only the latest revision, and
// groups are ordered by the position their id was first seen - not by when
// the winning revision arrived - so interleaved user/assistant turns stay
// in conversational order.
func Project(events []RawEvent) []DisplayMessage {
	var order []string
	latest := make(map[string]RawEvent)

	for _, ev := range events {
		if ev.MessageID == "" {
			continue
		}
		if _, seen := latest[ev.MessageID]; !seen {
			order = append(order, ev.MessageID)
		}
		latest[ev.MessageID] = ev
	}

	messages := make([]DisplayMessage, 0, len(order))
	for _, id := range order {
		messages = append(messages, enrich(latest[id]))
	}
	return messages
}

// enrich classifies one raw message and extracts assistant sub-content.
func enrich(ev RawEvent) DisplayMessage {
	msg := DisplayMessage{
		ID:      ev.MessageID,
		Content: ev.Content,
	}

	if strings.EqualFold(ev.Role, "human") || strings.EqualFold(ev.Role, string(RoleUser)) {
		msg.Role = RoleUser
		return msg
	}
	msg.Role = RoleAssistant

	if strings.EqualFold(ev.Role, "tool") {
		msg.Segments = []Segment{{Kind: SegmentToolResult, Text: ev.Content}}
		return msg
	}

	segments, err := extractSegments(ev.Content)
	if err != nil {
		// Degrade to plain text rather than dropping the message.
		msg.Warning = fmt.Sprintf("failed to parse structured content: %v", err)
		return msg
	}
	msg.Segments = segments
	return msg
}

// contentBlock is the wire shape of one structured assistant content block.
type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// extractSegments parses assistant content into structured segments.
//
// Structured content is a JSON array of blocks ({"type":"text"} and
// {"type":"tool_use"}). Anything that doesn't look like a block array is
// treated as one plain text segment.
func extractSegments(content string) ([]Segment, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "[") {
		return []Segment{{Kind: SegmentText, Text: content}}, nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal([]byte(trimmed), &blocks); err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(blocks))
	for i, block := range blocks {
		switch block.Type {
		case "text":
			segments = append(segments, Segment{Kind: SegmentText, Text: block.Text})
		case "tool_use":
			segments = append(segments, Segment{
				Kind:      SegmentToolCall,
				ToolName:  block.Name,
				ToolInput: block.Input,
			})
		case "tool_result":
			segments = append(segments, Segment{Kind: SegmentToolResult, Text: block.Text})
		default:
			return nil, fmt.Errorf("unknown content block type %q at index %d", block.Type, i)
		}
	}
	return segments, nil
}

package stream

import (
	"reflect"
	"testing"
)

func TestProjectCollapsesRevisions(t *testing.T) {
	events := []RawEvent{
		{MessageID: "1", Role: "human", Content: "hi"},
		{MessageID: "2", Role: "assistant", Content: "He"},
		{MessageID: "2", Role: "assistant", Content: "Hello!"},
	}

	messages := Project(events)
	if len(messages) != 2 {
		t.Fatalf("expected 2 display messages, got %d", len(messages))
	}

	if messages[0].Role != RoleUser || messages[0].Content != "hi" {
		t.Errorf("unexpected first message: %+v", messages[0])
	}
	if messages[1].Role != RoleAssistant || messages[1].Content != "Hello!" {
		t.Errorf("unexpected second message: %+v", messages[1])
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	events := []RawEvent{
		{MessageID: "1", Role: "human", Content: "show revenue"},
		{MessageID: "2", Role: "ai", Content: "Looking"},
		{MessageID: "2", Role: "ai", Content: "Looking it up."},
		{MessageID: "3", Role: "tool", Content: "query returned 4 rows"},
	}

	first := Project(events)
	second := Project(events)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated projection of the same input diverged")
	}
}

func TestProjectIsRestartable(t *testing.T) {
	prefix := []RawEvent{
		{MessageID: "1", Role: "human", Content: "hi"},
		{MessageID: "2", Role: "ai", Content: "Hello!"},
	}
	full := append(append([]RawEvent{}, prefix...),
		RawEvent{MessageID: "1", Role: "human", Content: "hi"}, // redelivered
		RawEvent{MessageID: "3", Role: "ai", Content: "Anything else?"},
	)

	before := Project(prefix)
	after := Project(full)

	// The old output survives as a prefix of the new one.
	if len(after) != 3 {
		t.Fatalf("expected 3 messages after restart, got %d", len(after))
	}
	if !reflect.DeepEqual(after[:len(before)], before) {
		t.Fatalf("restart changed already-seen messages:\nbefore: %+v\nafter:  %+v", before, after[:len(before)])
	}
}

func TestProjectOrdersByFirstSeen(t *testing.T) {
	// The winning revision of message 1 arrives after message 2 first
	// appears; conversational order must still hold.
	events := []RawEvent{
		{MessageID: "1", Role: "ai", Content: "draft"},
		{MessageID: "2", Role: "human", Content: "wait"},
		{MessageID: "1", Role: "ai", Content: "final"},
	}

	messages := Project(events)
	if messages[0].ID != "1" || messages[0].Content != "final" {
		t.Errorf("unexpected first message: %+v", messages[0])
	}
	if messages[1].ID != "2" {
		t.Errorf("unexpected second message: %+v", messages[1])
	}
}

func TestProjectSkipsEmptyMessageIDs(t *testing.T) {
	events := []RawEvent{
		{MessageID: "", Role: "ai", Content: "orphan"},
		{MessageID: "1", Role: "human", Content: "hi"},
	}

	messages := Project(events)
	if len(messages) != 1 || messages[0].ID != "1" {
		t.Fatalf("expected orphan event dropped, got %+v", messages)
	}
}

func TestEnrichRoleMapping(t *testing.T) {
	tests := []struct {
		wire string
		want Role
	}{
		{"human", RoleUser},
		{"user", RoleUser},
		{"ai", RoleAssistant},
		{"assistant", RoleAssistant},
		{"system", RoleAssistant},
		{"tool", RoleAssistant},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			messages := Project([]RawEvent{{MessageID: "1", Role: tt.wire, Content: "x"}})
			if messages[0].Role != tt.want {
				t.Errorf("role %q mapped to %s, want %s", tt.wire, messages[0].Role, tt.want)
			}
		})
	}
}

func TestToolEventsBecomeToolResultSegments(t *testing.T) {
	messages := Project([]RawEvent{
		{MessageID: "1", Role: "tool", Content: "query returned 4 rows"},
	})

	segments := messages[0].Segments
	if len(segments) != 1 || segments[0].Kind != SegmentToolResult {
		t.Fatalf("expected a single tool_result segment, got %+v", segments)
	}
}

func TestStructuredContentExtraction(t *testing.T) {
	content := `[{"type":"text","text":"Creating it now."},{"type":"tool_use","name":"create_dashboard","input":{"name":"Revenue"}}]`
	messages := Project([]RawEvent{{MessageID: "1", Role: "ai", Content: content}})

	msg := messages[0]
	if msg.Warning != "" {
		t.Fatalf("unexpected warning: %s", msg.Warning)
	}
	if len(msg.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(msg.Segments))
	}
	if msg.Segments[0].Kind != SegmentText || msg.Segments[0].Text != "Creating it now." {
		t.Errorf("unexpected text segment: %+v", msg.Segments[0])
	}
	if msg.Segments[1].Kind != SegmentToolCall || msg.Segments[1].ToolName != "create_dashboard" {
		t.Errorf("unexpected tool segment: %+v", msg.Segments[1])
	}
}

func TestMalformedStructuredContentDegradesWithWarning(t *testing.T) {
	messages := Project([]RawEvent{
		{MessageID: "1", Role: "ai", Content: `[{"type":"teleport"}]`},
	})

	msg := messages[0]
	if msg.Warning == "" {
		t.Fatal("expected a warning for unknown block type")
	}
	if msg.Content != `[{"type":"teleport"}]` {
		t.Errorf("expected raw content preserved, got %q", msg.Content)
	}
	if len(msg.Segments) != 0 {
		t.Errorf("expected no segments on degraded message, got %+v", msg.Segments)
	}
}

func TestPlainTextAssistantContent(t *testing.T) {
	messages := Project([]RawEvent{
		{MessageID: "1", Role: "ai", Content: "Just words."},
	})

	segments := messages[0].Segments
	if len(segments) != 1 || segments[0].Kind != SegmentText || segments[0].Text != "Just words." {
		t.Fatalf("expected one plain text segment, got %+v", segments)
	}
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/boardpilot/boardpilot/internal/stream"
)

const defaultSystemPrompt = `You are boardpilot, a data dashboard copilot.
You help users explore their data and build dashboards. Use the provided
tools to create and edit dashboards, add widgets, run queries, and export
results. Answer briefly in plain text when no tool applies.`

// Client implements Stream against the Anthropic Messages API.
type Client struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *log.Logger
}

var _ Stream = (*Client)(nil)

// NewClient creates an agent client for the given model.
// If logger is nil, a default logger writing to stderr is used.
func NewClient(apiKey string, model string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[agent] ", log.LstdFlags)
	}
	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: 2048,
		logger:    logger,
	}
}

// Submit implements Stream.Submit.
func (c *Client) Submit(ctx context.Context, text string, opts SubmitOptions) (<-chan Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message text is empty")
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  buildMessages(opts.History, text),
		Tools:     actionTools(),
	}

	system := opts.System
	if system == "" {
		system = defaultSystemPrompt
	}
	params.System = []anthropic.TextBlockParam{{Text: system}}

	events := make(chan Event, 16)
	go c.run(ctx, params, opts, events)
	return events, nil
}

// run drives one streaming exchange and forwards events until it settles.
func (c *Client) run(ctx context.Context, params anthropic.MessageNewParams, opts SubmitOptions, events chan<- Event) {
	defer close(events)

	sse := c.api.Messages.NewStreaming(ctx, params)
	defer sse.Close()

	var (
		acc       anthropic.Message
		messageID string
		textSoFar strings.Builder
	)

	for sse.Next() {
		event := sse.Current()
		if err := acc.Accumulate(event); err != nil {
			c.logger.Printf("Failed to accumulate event: %v", err)
			events <- Event{Kind: KindError, Err: err}
			return
		}

		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			messageID = ev.Message.ID
			if opts.ThreadID == "" {
				// First exchange of an anonymous session: the server
				// message id becomes the thread id.
				events <- Event{Kind: KindThreadID, ThreadID: messageID}
			}

		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				textSoFar.WriteString(delta.Text)
				events <- Event{Kind: KindMessage, Message: stream.RawEvent{
					MessageID: messageID,
					Role:      "ai",
					Content:   textSoFar.String(),
				}}
			}
		}
	}

	if err := sse.Err(); err != nil {
		c.logger.Printf("Stream failed: %v", err)
		events <- Event{Kind: KindError, Err: err}
		return
	}

	// Tool calls arrive as complete blocks on the accumulated message.
	for _, block := range acc.Content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		input, err := json.Marshal(toolUse.Input)
		if err != nil {
			c.logger.Printf("Failed to marshal tool input for %s: %v", toolUse.Name, err)
			continue
		}
		events <- Event{Kind: KindToolCall, Tool: ToolCall{
			ID:    toolUse.ID,
			Name:  toolUse.Name,
			Input: input,
		}}
	}
}

// buildMessages replays the prior timeline and appends the new user turn.
func buildMessages(history []stream.RawEvent, text string) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(stream.Project(history))+1)
	for _, m := range stream.Project(history) {
		switch m.Role {
		case stream.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		default:
			if m.Content != "" {
				msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
}

// actionTools declares the structured actions the agent may request.
func actionTools() []anthropic.ToolUnionParam {
	tool := func(name, description string, props map[string]interface{}, required []string) anthropic.ToolUnionParam {
		return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        name,
			Description: anthropic.String(description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   required,
			},
		}}
	}

	return []anthropic.ToolUnionParam{
		tool("create_dashboard", "Create a new dashboard for the user.",
			map[string]interface{}{
				"name":        map[string]interface{}{"type": "string"},
				"description": map[string]interface{}{"type": "string"},
			}, []string{"name"}),
		tool("update_dashboard", "Update fields on an existing dashboard.",
			map[string]interface{}{
				"dashboard_id": map[string]interface{}{"type": "string"},
				"name":         map[string]interface{}{"type": "string"},
				"description":  map[string]interface{}{"type": "string"},
			}, []string{"dashboard_id"}),
		tool("add_widget", "Add a widget to a dashboard. Position is optional; when omitted the layout engine places it.",
			map[string]interface{}{
				"dashboard_id": map[string]interface{}{"type": "string"},
				"type":         map[string]interface{}{"type": "string", "enum": []string{"chart", "table", "metric", "text"}},
				"title":        map[string]interface{}{"type": "string"},
				"x":            map[string]interface{}{"type": "number"},
				"y":            map[string]interface{}{"type": "number"},
				"config":       map[string]interface{}{"type": "object"},
			}, []string{"dashboard_id", "type", "title"}),
		tool("run_query", "Run a read-only SELECT query against the data store.",
			map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
			}, []string{"query"}),
		tool("export_csv", "Export query results as CSV.",
			map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
			}, []string{"query"}),
	}
}

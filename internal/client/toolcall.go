package client

import (
	"encoding/json"
	"strings"

	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// newToolCallPayload is the session/update params.update shape when
// sessionUpdate == tool_call.
type newToolCallPayload struct {
	ToolCallID string          `json:"toolCallId"`
	Name       string          `json:"name,omitempty"`
	Title      string          `json:"title,omitempty"`
	Status     string          `json:"status,omitempty"`
	Content    []json.RawMessage `json:"content,omitempty"`
}

// toolCallUpdatePayload is the session/update params.update shape when
// sessionUpdate == tool_call_update.
type toolCallUpdatePayload struct {
	ToolCallID string            `json:"toolCallId"`
	Status     string            `json:"status,omitempty"`
	Content    []json.RawMessage `json:"content,omitempty"`
}

// normalizeStatus maps the wire "in_progress" value to ToolStatusRunning
// and passes every other recognized status through unchanged.
func normalizeStatus(raw string) wire.ToolCallStatus {
	if raw == "in_progress" {
		return wire.ToolStatusRunning
	}
	return wire.ToolCallStatus(raw)
}

// newToolCall builds a ToolCall from a tool_call update, parsing its
// free-text title when Name/Input/Args aren't already explicit in the
// payload.
func newToolCall(p newToolCallPayload, contextLines int, seq, timestamp int64) *ToolCall {
	tc := &ToolCall{
		ID:        p.ToolCallID,
		Name:      p.Name,
		Title:     p.Title,
		Status:    normalizeStatus(p.Status),
		Timestamp: timestamp,
		Seq:       seq,
	}
	applyParsedTitle(tc)
	for _, item := range p.Content {
		accumulateContent(tc, item, contextLines)
	}
	return tc
}

// applyParsedTitle recovers workingDir/description/input/args from a
// tool call's free-text Title, never overwriting fields
// the wire payload already set explicitly.
func applyParsedTitle(tc *ToolCall) {
	if tc.Title == "" {
		return
	}
	parsed := parseTitle(tc.Title)
	if tc.WorkingDir == "" {
		tc.WorkingDir = parsed.WorkingDir
	}
	if tc.Description == "" {
		tc.Description = parsed.Description
	}
	if tc.Input == "" {
		tc.Input = parsed.Input
	}
	if tc.Args == nil {
		tc.Args = parsed.Args
	}
}

// applyToolCallUpdate mutates an existing ToolCall in place: status
// (with in_progress -> running mapping) and content items (strings,
// text containers, or diff payloads).
func applyToolCallUpdate(tc *ToolCall, p toolCallUpdatePayload, contextLines int, seq, timestamp int64) {
	if p.Status != "" {
		tc.Status = normalizeStatus(p.Status)
	}
	for _, item := range p.Content {
		accumulateContent(tc, item, contextLines)
	}
	tc.Seq = seq
	tc.Timestamp = timestamp
}

// textContentItem recognizes a {"type":"text","text":"..."} or
// {"content":{"type":"text","text":"..."}} shaped content item.
type textContentItem struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Content *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content,omitempty"`
}

// accumulateContent folds one tool_call/tool_call_update content item
// into tc: a diff-shaped item normalizes into tc.Diff; a plain string or
// text container appends to tc.Result; anything else is recorded as-is.
func accumulateContent(tc *ToolCall, raw json.RawMessage, contextLines int) {
	if len(raw) == 0 {
		return
	}

	if diff := normalizeDiff(raw, contextLines); diff != nil {
		tc.Diff = diff
		return
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		appendResultText(tc, asString)
		return
	}

	var item textContentItem
	if err := json.Unmarshal(raw, &item); err == nil {
		if item.Content != nil && item.Content.Text != "" {
			appendResultText(tc, item.Content.Text)
			return
		}
		if item.Text != "" {
			appendResultText(tc, item.Text)
			return
		}
	}

	// Unrecognized shape: keep the raw payload so no information is lost.
	var generic any
	if json.Unmarshal(raw, &generic) == nil {
		tc.Result = generic
	}
}

func appendResultText(tc *ToolCall, text string) {
	existing, _ := tc.Result.(string)
	if existing == "" {
		tc.Result = text
		return
	}
	tc.Result = strings.Join([]string{existing, text}, "")
}

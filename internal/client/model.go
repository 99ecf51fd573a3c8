// Package client implements the client-side conversation reconstructor
// (C5): it drives a wire connection, rebuilds an ordered in-memory
// conversation from streaming frames, rectifies overlapping chunks,
// maintains the tool-call lifecycle, and exposes a notification API
// carrying arrival-order metadata to a host application.
//
// Grounded on the mutex-protected registry idiom of
// schmitthub-clawker's internal/socketbridge.Manager, adapted from a
// map-of-subprocesses to a single ordered conversation under one lock.
package client

import "github.com/schmitthub/clawker-bridge/internal/wire"

// PartKind discriminates the variants of AssistantMessage.Content.
type PartKind int

const (
	PartText PartKind = iota
	PartThought
	PartToolCall
)

// Part is one element of an assistant message's ordered content
// sequence.
type Part struct {
	Kind     PartKind
	Text     string   // valid for PartText
	Thought  string   // valid for PartThought
	ToolCall *ToolCall // valid for PartToolCall; shared pointer with AssistantMessage.ToolCalls
}

// AssistantMessage is the client-side model of one assistant turn's
// output.
type AssistantMessage struct {
	ID         string
	Role       string // always "assistant"
	Content    []Part
	Text       string // flat accumulator, kept alongside Content
	Thought    string // flat accumulator, kept alongside Content
	ToolCalls  []*ToolCall
	StopReason string
	Hidden     bool
	Timestamp  int64
	Seq        int64
}

// UserMessage is the client-side model of a submitted prompt.
type UserMessage struct {
	ID        string
	Role      string // always "user"
	Text      string
	Hidden    bool
	Timestamp int64
	Seq       int64
}

// Diff is the normalized shape every tool-call diff payload is reduced
// to, regardless of which wire shape it arrived in.
type Diff struct {
	Path          string
	Unified       string
	OldTextLength int
	NewTextLength int
}

// ToolCall is the client-side model of one tool invocation's lifecycle
//.
type ToolCall struct {
	ID          string
	Name        string
	Title       string
	Status      wire.ToolCallStatus
	Input       string
	Args        any
	Description string
	WorkingDir  string
	Result      any
	Diff        *Diff
	Timestamp   int64
	Seq         int64
}

// PermissionOption mirrors wire.PermissionOption for host consumption.
type PermissionOption = wire.PermissionOption

// PendingApproval is a tool invocation awaiting the host's decision
//.
type PendingApproval struct {
	RequestID string
	ToolCall  *ToolCall
	Options   []PermissionOption

	requestFrame *wire.RawFrame // the original session/request_permission frame, held for reply
	sessionID    string
}

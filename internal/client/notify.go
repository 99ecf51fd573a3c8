package client

import "github.com/schmitthub/clawker-bridge/internal/wire"

// NotifyKind discriminates the variants of Notification.
type NotifyKind int

const (
	NotifyUserMessage NotifyKind = iota
	NotifyAssistantDelta
	NotifyAssistantFinal
	NotifyToolCall
	NotifyToolCallUpdate
	NotifyToolCallCompleted
	NotifyPermissionRequest
	NotifyStructuredEvent
	NotifyAuthURL
	NotifyTurnCompleted
	NotifyError
)

// StructuredEvent is the host-facing shape of a bridge/structured_event
// notification.
type StructuredEvent struct {
	SessionID string
	Type      string
	Payload   []byte
	Raw       string
	Err       string
}

// Notification is one arrival-ordered event delivered to the host
// application. Seq is strictly
// monotonic over the connection's lifetime and is the authoritative
// order for interleaving chat updates with side-channel events;
// Timestamp is advisory.
type Notification struct {
	Kind      NotifyKind
	Seq       int64
	Timestamp int64

	// Replay metadata, zero-valued for live events.
	IsReplay bool
	ReplayID int64
	TurnID   int64
	Hidden   wire.HiddenMode

	User      *UserMessage
	Assistant *AssistantMessage
	Delta     string // the new segment, for NotifyAssistantDelta
	ToolCall  *ToolCall
	Approval  *PendingApproval
	Event     *StructuredEvent
	AuthURL   string
	Reason    string // turn-completion / error reason
}

// Sink receives notifications in arrival order, one at a time off the
// connection's single reader goroutine. The reconstructor's lock is not
// held while Sink runs, but a slow Sink delays processing of the next
// frame, so implementations should not block for long.
type Sink func(Notification)

package wire

// Method names crossing the bridge. Canonical names are
// retained for compatibility with the downstream CLI agent's own wire
// vocabulary even though the bridge reshapes their surrounding transport.
const (
	MethodSessionNew              = "session/new"
	MethodSessionPrompt           = "session/prompt"
	MethodSessionCancel           = "session/cancel"
	MethodSubmitAuthCode          = "gemini/submitAuthCode"
	MethodSessionUpdate           = "session/update"
	MethodRequestPermission       = "session/request_permission"
	MethodProvidePermission       = "session/provide_permission"
	MethodAuthURL                 = "gemini/authUrl"
	MethodFSReadTextFile          = "fs/read_text_file"
	MethodFSWriteTextFile         = "fs/write_text_file"
	MethodBridgeReplay            = "bridge/replay"
	MethodBridgeStructuredEvent   = "bridge/structured_event"
)

// HiddenMode controls whether user and/or assistant events of a turn are
// surfaced to clients while still being recorded internally.
type HiddenMode string

const (
	HiddenNone      HiddenMode = "none"
	HiddenUser      HiddenMode = "user"
	HiddenAssistant HiddenMode = "assistant"
	HiddenTurn      HiddenMode = "turn"
)

// SuppressesUser reports whether this mode hides user-prompt emission.
func (m HiddenMode) SuppressesUser() bool {
	return m == HiddenUser || m == HiddenTurn
}

// SuppressesAssistant reports whether this mode hides assistant emission
// and forces auto-rejection of tool approvals.
func (m HiddenMode) SuppressesAssistant() bool {
	return m == HiddenAssistant || m == HiddenTurn
}

// Normalize maps an empty/unknown hint to HiddenNone.
func Normalize(m HiddenMode) HiddenMode {
	switch m {
	case HiddenUser, HiddenAssistant, HiddenTurn:
		return m
	default:
		return HiddenNone
	}
}

// PermissionOptionKind enumerates the kinds a permission option may carry.
type PermissionOptionKind string

const (
	OptionAllowOnce   PermissionOptionKind = "allow_once"
	OptionAllowAlways PermissionOptionKind = "allow_always"
	OptionDeny        PermissionOptionKind = "deny"
	OptionDenyAlways  PermissionOptionKind = "deny_always"
	OptionRejectOnce  PermissionOptionKind = "reject_once"
)

// IsDenyLike reports whether the kind is deny, deny_always or reject_once
// (the known kinds beginning with "deny" or "reject"; any other kind
// string reports false), the selection rule used for auto-resolving
// hidden-turn approval requests.
func (k PermissionOptionKind) IsDenyLike() bool {
	switch k {
	case OptionDeny, OptionDenyAlways, OptionRejectOnce:
		return true
	default:
		return false
	}
}

// PermissionOption is one selectable outcome of a permission request.
type PermissionOption struct {
	OptionID string               `json:"optionId"`
	Kind     PermissionOptionKind `json:"kind"`
	Label    string               `json:"label"`
}

// SessionUpdateKind enumerates the session/update payload kinds.
type SessionUpdateKind string

const (
	UpdateAgentMessageChunk SessionUpdateKind = "agent_message_chunk"
	UpdateAgentThoughtChunk SessionUpdateKind = "agent_thought_chunk"
	UpdateToolCall          SessionUpdateKind = "tool_call"
	UpdateToolCallUpdate    SessionUpdateKind = "tool_call_update"
	UpdateEndOfTurn         SessionUpdateKind = "end_of_turn"
)

// ToolCallStatus enumerates lifecycle states of a ToolCall.
type ToolCallStatus string

const (
	ToolStatusQueued    ToolCallStatus = "queued"
	ToolStatusRunning   ToolCallStatus = "running"
	ToolStatusCompleted ToolCallStatus = "completed"
	ToolStatusFailed    ToolCallStatus = "failed"
	ToolStatusCancelled ToolCallStatus = "cancelled"
)

// IsTerminal reports whether the status ends the tool call's lifecycle.
func (s ToolCallStatus) IsTerminal() bool {
	switch s {
	case ToolStatusCompleted, ToolStatusFailed, ToolStatusCancelled:
		return true
	default:
		return false
	}
}

package bridge

// PromptItem is one element of a session/prompt request's prompt array.
type PromptItem struct {
	Type string      `json:"type"`
	Text string      `json:"text"`
	Meta *PromptMeta `json:"meta,omitempty"`
}

// PromptMeta carries the hidden-mode hint, stripped before the prompt is
// forwarded to the subprocess.
type PromptMeta struct {
	Hidden string `json:"hidden,omitempty"`
}

// SessionPromptParams is the params shape of a session/prompt request.
type SessionPromptParams struct {
	SessionID string       `json:"sessionId"`
	Prompt    []PromptItem `json:"prompt"`
}

// submitAuthCodeParams is the params shape of a gemini/submitAuthCode
// notification.
type submitAuthCodeParams struct {
	Code string `json:"code"`
}

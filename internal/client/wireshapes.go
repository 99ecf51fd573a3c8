package client

import "encoding/json"

// promptItem/promptMeta/promptParams mirror internal/bridge's
// PromptItem/PromptMeta/SessionPromptParams wire shape for session/prompt.
// Duplicated here rather than imported so the client
// reconstructor has no compile-time dependency on the server-side
// multiplexer package — C5 is specified as an independent component
// that only shares a wire contract with C4, not Go types.
type promptItem struct {
	Type string      `json:"type"`
	Text string      `json:"text"`
	Meta *promptMeta `json:"meta,omitempty"`
}

type promptMeta struct {
	Hidden string `json:"hidden,omitempty"`
}

type promptParams struct {
	SessionID string       `json:"sessionId"`
	Prompt    []promptItem `json:"prompt"`
}

// sessionNewParams is the session/new request's params shape.
type sessionNewParams struct {
	Cwd        string         `json:"cwd"`
	Model      string         `json:"model,omitempty"`
	MCPServers map[string]any `json:"mcpServers,omitempty"`
}

// sessionNewResult is the session/new response's result shape.
type sessionNewResult struct {
	SessionID string `json:"sessionId"`
}

// sessionUpdateEnvelope is the session/update notification's params
// shape; Update is probed for its sessionUpdate kind before being
// decoded into the kind-specific payload.
type sessionUpdateEnvelope struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}

type updateKindProbe struct {
	SessionUpdate string `json:"sessionUpdate"`
}

// contentChunkPayload is the session/update.update shape for
// agent_message_chunk / agent_thought_chunk.
type contentChunkPayload struct {
	SessionUpdate string `json:"sessionUpdate"`
	Content       struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// promptResult is the response shape for an original session/prompt
// request once the turn stops.
type promptResult struct {
	StopReason string `json:"stopReason,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

// authURLParams is the gemini/authUrl notification's params shape.
type authURLParams struct {
	URL string `json:"url"`
}

// structuredEventParams is the bridge/structured_event notification's
// params shape: the tag parser's re-serialized EventPart, plus the turn
// id and hidden mode the bridge tags it with.
type structuredEventParams struct {
	SessionID  string          `json:"sessionId,omitempty"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Raw        string          `json:"raw"`
	Err        string          `json:"err,omitempty"`
	TurnID     int64           `json:"turnId,omitempty"`
	HiddenMode string          `json:"hiddenMode,omitempty"`
}

// replayEnvelopeParams is the bridge/replay notification's params shape.
type replayEnvelopeParams struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ReplayID  int64           `json:"replayId"`
}

// replaySpliced pulls the turnId/hiddenMode fields the bridge splices
// into a replayed frame's top level (internal/bridge/replay.go's
// wrapReplay) out of the envelope's Data.
type replaySpliced struct {
	TurnID     int64  `json:"turnId"`
	HiddenMode string `json:"hiddenMode"`
}

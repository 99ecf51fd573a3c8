package bridge

import (
	"encoding/json"

	"github.com/schmitthub/clawker-bridge/internal/tagparser"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// sessionUpdateParams is the params shape of a session/update frame.
type sessionUpdateParams struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}

// updatePayload is the params.update shape; only the fields the outgoing
// transform needs to inspect are modeled here, the rest of the envelope
// round-trips via RawMessage re-marshaling.
type updatePayload struct {
	SessionUpdate string        `json:"sessionUpdate"`
	Content       *contentBlock `json:"content,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// structuredEventPayload is the bridge/structured_event notification body.
type structuredEventPayload struct {
	SessionID string          `json:"sessionId,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Raw       string          `json:"raw"`
	Err       string          `json:"err,omitempty"`
	TurnID     int64           `json:"turnId,omitempty"`
	HiddenMode wire.HiddenMode `json:"hiddenMode,omitempty"`
}

// applyOutgoingTransform feeds a subprocess-emitted frame through the
// configured tagparser instance, applying the outbound frame policy.
// Frames that are not text-bearing session/update chunks pass
// through unchanged. The returned slice preserves the left-to-right
// positional order of text and extracted structured events within the
// chunk.
func (b *Bridge) applyOutgoingTransform(f *wire.RawFrame) []*wire.RawFrame {
	if b.parser == nil || f.Method != wire.MethodSessionUpdate {
		return []*wire.RawFrame{f}
	}

	var params sessionUpdateParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return []*wire.RawFrame{f}
	}
	var update updatePayload
	if err := json.Unmarshal(params.Update, &update); err != nil {
		return []*wire.RawFrame{f}
	}

	kind := wire.SessionUpdateKind(update.SessionUpdate)
	isChunk := kind == wire.UpdateAgentMessageChunk || kind == wire.UpdateAgentThoughtChunk
	isEndOfTurn := kind == wire.UpdateEndOfTurn

	var frames []*wire.RawFrame

	if isEndOfTurn {
		frames = append(frames, b.framesFromParts(params.SessionID, kind, b.parser.Flush())...)
		frames = append(frames, f)
		return frames
	}

	if !isChunk || update.Content == nil || update.Content.Type != "text" {
		return []*wire.RawFrame{f}
	}

	parts := b.parser.Feed(update.Content.Text)
	frames = b.framesFromParts(params.SessionID, kind, parts)
	if len(frames) == 0 {
		// Nothing emitted yet (whole chunk held back pending more input);
		// still emit an empty-text update so per-frame sequencing/logging
		// observes the chunk arrived.
		frames = []*wire.RawFrame{b.textUpdateFrame(params.SessionID, kind, "")}
	}
	return frames
}

// framesFromParts converts tagparser Parts into ordered wire frames: text
// parts become session/update frames of the same kind, event parts become
// bridge/structured_event notifications.
func (b *Bridge) framesFromParts(sessionID string, kind wire.SessionUpdateKind, parts []tagparser.Part) []*wire.RawFrame {
	frames := make([]*wire.RawFrame, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case tagparser.PartText:
			if part.Text == "" {
				continue
			}
			frames = append(frames, b.textUpdateFrame(sessionID, kind, part.Text))
		case tagparser.PartEvent:
			turn := b.currentTurn()
			payload := structuredEventPayload{
				SessionID:  sessionID,
				Type:       part.EventType,
				Payload:    part.Payload,
				Raw:        part.Raw,
				Err:        part.Err,
				TurnID:     turn,
				HiddenMode: b.hiddenFor(turn),
			}
			nf, err := wire.NewNotification(wire.MethodBridgeStructuredEvent, payload)
			if err == nil {
				frames = append(frames, nf)
			}
		}
	}
	return frames
}

func (b *Bridge) textUpdateFrame(sessionID string, kind wire.SessionUpdateKind, text string) *wire.RawFrame {
	update := updatePayload{SessionUpdate: string(kind), Content: &contentBlock{Type: "text", Text: text}}
	updateRaw, _ := json.Marshal(update)
	params := sessionUpdateParams{SessionID: sessionID, Update: updateRaw}
	nf, _ := wire.NewNotification(wire.MethodSessionUpdate, params)
	return nf
}

package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// ReplayQuery carries the connection URL's replay parameters: Limit
// counts distinct turns, Since/Before bound timestamps
// exclusively.
type ReplayQuery struct {
	Limit  int
	Since  int64 // ms, exclusive lower bound; 0 means unset
	Before int64 // ms, exclusive upper bound; 0 means unset
}

// replayEnvelope is a bridge/replay wire payload wrapping one stored
// Event. Data carries the original frame verbatim (as raw JSON, never
// base64-escaped) with turnId/hiddenMode spliced in as non-protocol
// fields so a reconnecting client can reconstitute per-turn behavior.
type replayEnvelope struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ReplayID  int64           `json:"replayId"`
}

// wrapReplay builds a bridge/replay notification frame carrying payload
// (an encoded wire.RawFrame) tagged with its originating turn and hidden
// mode.
func wrapReplay(payload []byte, turnID int64, hidden wire.HiddenMode, timestamp, replayID int64) (*wire.RawFrame, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("bridge: decode replay payload: %w", err)
	}
	obj["turnId"], _ = json.Marshal(turnID)
	obj["hiddenMode"], _ = json.Marshal(hidden)
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("bridge: re-encode replay payload: %w", err)
	}

	env := replayEnvelope{Timestamp: timestamp, Data: data, ReplayID: replayID}
	return wire.NewNotification(wire.MethodBridgeReplay, env)
}

// selectReplay runs the replay-selection algorithm: take the whole
// ring, drop entries outside (since, before) (exclusive both ends), then
// if limit is set, keep only entries whose turn is among the last limit
// distinct turns remaining.
func selectReplay(events []Event, q ReplayQuery) []Event {
	filtered := make([]Event, 0, len(events))
	for _, e := range events {
		if q.Since != 0 && e.Timestamp <= q.Since {
			continue
		}
		if q.Before != 0 && e.Timestamp >= q.Before {
			continue
		}
		filtered = append(filtered, e)
	}

	if q.Limit <= 0 {
		return filtered
	}

	var distinctTurns []int64
	seen := make(map[int64]struct{})
	for _, e := range filtered {
		if _, ok := seen[e.TurnID]; !ok {
			seen[e.TurnID] = struct{}{}
			distinctTurns = append(distinctTurns, e.TurnID)
		}
	}
	if len(distinctTurns) <= q.Limit {
		return filtered
	}
	keep := make(map[int64]struct{}, q.Limit)
	for _, t := range distinctTurns[len(distinctTurns)-q.Limit:] {
		keep[t] = struct{}{}
	}

	out := make([]Event, 0, len(filtered))
	for _, e := range filtered {
		if _, ok := keep[e.TurnID]; ok {
			out = append(out, e)
		}
	}
	return out
}

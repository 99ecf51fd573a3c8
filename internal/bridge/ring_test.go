package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schmitthub/clawker-bridge/internal/wire"
)

func TestRingEvictsOldestOverCapacity(t *testing.T) {
	r := NewRing(3)
	for i := int64(1); i <= 5; i++ {
		r.Append(Event{Timestamp: i, TurnID: i})
	}
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, []int64{3, 4, 5}, []int64{snap[0].Timestamp, snap[1].Timestamp, snap[2].Timestamp})
}

func TestRingDefaultsCapacity(t *testing.T) {
	r := NewRing(0)
	require.Equal(t, 2000, r.cap)
}

func TestSelectReplayFiltersByTimestampBounds(t *testing.T) {
	events := []Event{
		{Timestamp: 10, TurnID: 1},
		{Timestamp: 20, TurnID: 1},
		{Timestamp: 30, TurnID: 2},
		{Timestamp: 40, TurnID: 2},
	}
	out := selectReplay(events, ReplayQuery{Since: 10, Before: 40})
	require.Len(t, out, 2)
	require.Equal(t, int64(20), out[0].Timestamp)
	require.Equal(t, int64(30), out[1].Timestamp)
}

func TestSelectReplayLimitCountsDistinctTurns(t *testing.T) {
	events := []Event{
		{Timestamp: 1, TurnID: 1},
		{Timestamp: 2, TurnID: 1},
		{Timestamp: 3, TurnID: 2},
		{Timestamp: 4, TurnID: 3},
		{Timestamp: 5, TurnID: 3},
	}
	out := selectReplay(events, ReplayQuery{Limit: 2})
	require.Len(t, out, 3)
	for _, e := range out {
		require.NotEqual(t, int64(1), e.TurnID)
	}
}

func TestSelectReplayLimitExceedingAvailableTurnsKeepsAll(t *testing.T) {
	events := []Event{{Timestamp: 1, TurnID: 1}, {Timestamp: 2, TurnID: 2}}
	out := selectReplay(events, ReplayQuery{Limit: 10})
	require.Len(t, out, 2)
}

func TestWrapReplaySplicesTurnAndHiddenMode(t *testing.T) {
	original, err := wire.NewNotification(wire.MethodSessionUpdate, map[string]string{"sessionId": "s1"})
	require.NoError(t, err)
	raw, err := original.Encode()
	require.NoError(t, err)

	frame, err := wrapReplay(raw, 7, wire.HiddenAssistant, 123, 456)
	require.NoError(t, err)
	require.Equal(t, wire.MethodBridgeReplay, frame.Method)

	var env replayEnvelope
	require.NoError(t, json.Unmarshal(frame.Params, &env))
	require.Equal(t, int64(123), env.Timestamp)
	require.Equal(t, int64(456), env.ReplayID)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, float64(7), data["turnId"])
	require.Equal(t, "assistant", data["hiddenMode"])
	require.Equal(t, wire.MethodSessionUpdate, data["method"])
}

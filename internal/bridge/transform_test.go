package bridge

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schmitthub/clawker-bridge/internal/supervisor"
	"github.com/schmitthub/clawker-bridge/internal/tagparser"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func newTestBridge(t *testing.T, mode tagparser.Mode) *Bridge {
	t.Helper()
	sup := supervisor.NewStub(t.TempDir(), nopWriteCloser{&bytes.Buffer{}})
	return New(Options{Supervisor: sup, RingCapacity: 10, TagMode: mode})
}

func chunkFrame(t *testing.T, sessionID, kind, text string) *wire.RawFrame {
	t.Helper()
	update := updatePayload{SessionUpdate: kind, Content: &contentBlock{Type: "text", Text: text}}
	raw, err := json.Marshal(update)
	require.NoError(t, err)
	f, err := wire.NewNotification(wire.MethodSessionUpdate, sessionUpdateParams{SessionID: sessionID, Update: raw})
	require.NoError(t, err)
	return f
}

func TestApplyOutgoingTransformPassesNonUpdateFramesThrough(t *testing.T) {
	b := newTestBridge(t, tagparser.ModeEvent)
	f, err := wire.NewNotification(wire.MethodRequestPermission, map[string]string{})
	require.NoError(t, err)
	frames := b.applyOutgoingTransform(f)
	require.Len(t, frames, 1)
	require.Same(t, f, frames[0])
}

func TestApplyOutgoingTransformExtractsStructuredEvent(t *testing.T) {
	b := newTestBridge(t, tagparser.ModeEvent)
	f := chunkFrame(t, "s1", string(wire.UpdateAgentMessageChunk), `before <SYS_JSON>{"a":1}</SYS_JSON> after`)

	frames := b.applyOutgoingTransform(f)
	require.Len(t, frames, 3)

	require.Equal(t, wire.MethodSessionUpdate, frames[0].Method)
	require.Equal(t, "before ", textOf(t, frames[0]))

	require.Equal(t, wire.MethodBridgeStructuredEvent, frames[1].Method)
	var ev structuredEventPayload
	require.NoError(t, json.Unmarshal(frames[1].Params, &ev))
	require.Equal(t, "sys_json", ev.Type)
	require.JSONEq(t, `{"a":1}`, string(ev.Payload))

	require.Equal(t, wire.MethodSessionUpdate, frames[2].Method)
	require.Equal(t, " after", textOf(t, frames[2]))
}

func TestApplyOutgoingTransformHandlesChunkBoundaryTagSplit(t *testing.T) {
	b := newTestBridge(t, tagparser.ModeEvent)

	f1 := chunkFrame(t, "s1", string(wire.UpdateAgentMessageChunk), `<SYS_JSON>{"a":1}</SYS_`)
	frames1 := b.applyOutgoingTransform(f1)
	require.Len(t, frames1, 1)
	require.Equal(t, "", textOf(t, frames1[0]))

	f2 := chunkFrame(t, "s1", string(wire.UpdateAgentMessageChunk), `JSON>OK`)
	frames2 := b.applyOutgoingTransform(f2)
	require.Len(t, frames2, 2)
	require.Equal(t, wire.MethodBridgeStructuredEvent, frames2[0].Method)
	require.Equal(t, "OK", textOf(t, frames2[1]))
}

func TestApplyOutgoingTransformFlushesOnEndOfTurn(t *testing.T) {
	b := newTestBridge(t, tagparser.ModeEvent)

	held := chunkFrame(t, "s1", string(wire.UpdateAgentMessageChunk), `<SYS_J`)
	frames := b.applyOutgoingTransform(held)
	require.Len(t, frames, 1)
	require.Equal(t, "", textOf(t, frames[0]))

	endFrame := chunkFrame(t, "s1", string(wire.UpdateEndOfTurn), "")
	frames = b.applyOutgoingTransform(endFrame)
	require.Len(t, frames, 2)
	require.Equal(t, "<SYS_J", textOf(t, frames[0]))
	require.Same(t, endFrame, frames[1])
}

func textOf(t *testing.T, f *wire.RawFrame) string {
	t.Helper()
	var params sessionUpdateParams
	require.NoError(t, json.Unmarshal(f.Params, &params))
	var update updatePayload
	require.NoError(t, json.Unmarshal(params.Update, &update))
	require.NotNil(t, update.Content)
	return update.Content.Text
}

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schmitthub/clawker-bridge/internal/supervisor"
	"github.com/schmitthub/clawker-bridge/internal/tagparser"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

func newTestBridgeWithStdin(t *testing.T) (*Bridge, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	sup := supervisor.NewStub(t.TempDir(), nopWriteCloser{buf})
	b := New(Options{Supervisor: sup, RingCapacity: 10, TagMode: tagparser.ModeEvent})
	return b, buf
}

func newFakeClient() *Client {
	return &Client{id: "fake", send: make(chan []byte, 16), done: make(chan struct{})}
}

func decodeLastLine(t *testing.T, buf *bytes.Buffer) *wire.RawFrame {
	t.Helper()
	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.NotEmpty(t, lines)
	f, err := wire.Decode(lines[len(lines)-1])
	require.NoError(t, err)
	return f
}

func TestHandleInboundForwardsVerbatimFrame(t *testing.T) {
	b, buf := newTestBridgeWithStdin(t)
	f, err := wire.NewNotification(wire.MethodSessionCancel, nil)
	require.NoError(t, err)
	raw, err := f.Encode()
	require.NoError(t, err)

	b.HandleInbound(newFakeClient(), raw)

	got := decodeLastLine(t, buf)
	require.Equal(t, wire.MethodSessionCancel, got.Method)
}

func TestHandlePromptBumpsTurnRecordsRingAndStripsHiddenMeta(t *testing.T) {
	b, buf := newTestBridgeWithStdin(t)

	sender := newFakeClient()
	peer := newFakeClient()
	b.register(sender)
	b.register(peer)

	params := SessionPromptParams{
		SessionID: "s1",
		Prompt: []PromptItem{
			{Type: "text", Text: "hello", Meta: &PromptMeta{Hidden: "assistant"}},
		},
	}
	f, err := wire.NewRequest(wire.NewIntID(1), wire.MethodSessionPrompt, params)
	require.NoError(t, err)
	raw, err := f.Encode()
	require.NoError(t, err)

	b.HandleInbound(sender, raw)

	// Forwarded to the subprocess with hidden metadata stripped.
	forwarded := decodeLastLine(t, buf)
	var fwdParams SessionPromptParams
	require.NoError(t, json.Unmarshal(forwarded.Params, &fwdParams))
	require.Nil(t, fwdParams.Prompt[0].Meta)

	// Sender does not receive its own peer-echo; the other client does.
	select {
	case msg := <-sender.send:
		t.Fatalf("sender should not receive its own echo, got %s", msg)
	default:
	}
	select {
	case msg := <-peer.send:
		peerFrame, err := wire.Decode(msg)
		require.NoError(t, err)
		require.Equal(t, wire.MethodBridgeReplay, peerFrame.Method)
	default:
		t.Fatal("peer should have received a replay-envelope echo")
	}

	// Ring recorded the original (unstripped) prompt frame tagged turn 1.
	snap := b.ring.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, int64(1), snap[0].TurnID)
	require.Equal(t, wire.HiddenAssistant, snap[0].Hidden)
}

func TestHandleOutboundBroadcastsAndAppendsStreamOfRecord(t *testing.T) {
	b, _ := newTestBridgeWithStdin(t)
	c := newFakeClient()
	b.register(c)

	f := chunkFrame(t, "s1", string(wire.UpdateAgentMessageChunk), "hi")
	b.handleOutbound(f)

	require.Len(t, b.ring.Snapshot(), 1)
	select {
	case <-c.send:
	default:
		t.Fatal("client should have received the broadcast frame")
	}
}

func TestHandleOutboundTriggersCheckpointOnEndOfTurnWithModifiedFiles(t *testing.T) {
	buf := &bytes.Buffer{}
	sup := supervisor.NewStub(t.TempDir(), nopWriteCloser{buf})
	sup.SetSessionID("sess-1")
	sup.MarkModifiedForTest("foo.txt")

	fireCh := make(chan []string, 1)
	b := New(Options{
		Supervisor:   sup,
		RingCapacity: 10,
		TagMode:      tagparser.ModeEvent,
		Checkpoint: func(_ context.Context, sessionID string, files []string) {
			require.Equal(t, "sess-1", sessionID)
			fireCh <- files
		},
	})

	endFrame := chunkFrame(t, "sess-1", string(wire.UpdateEndOfTurn), "")
	b.handleOutbound(endFrame)

	select {
	case files := <-fireCh:
		require.Equal(t, []string{"foo.txt"}, files)
	case <-time.After(time.Second):
		t.Fatal("checkpoint callback was not invoked")
	}

	require.Empty(t, sup.ModifiedFiles(), "modified set should be cleared once checkpoint fires")
}

package client

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// fakeTransport records every frame sent through it as raw JSON, for
// assertions on what Conversation wrote to the wire.
type fakeTransport struct {
	sent [][]byte
}

func (t *fakeTransport) Send(data []byte) error {
	t.sent = append(t.sent, append([]byte(nil), data...))
	return nil
}

func newTestConversation() (*Conversation, *fakeTransport, []Notification) {
	var notes []Notification
	c := New(Options{Sink: func(n Notification) { notes = append(notes, n) }})
	tr := &fakeTransport{}
	c.SetTransport(tr)
	return c, tr, notes
}

func newPermissionRequestFrame(t *testing.T, toolCallID string, options []wire.PermissionOption) *wire.RawFrame {
	t.Helper()
	params := requestPermissionParams{SessionID: "sess1"}
	params.ToolCall.ToolCallID = toolCallID
	params.ToolCall.Name = "shell"
	params.Options = options
	f, err := wire.NewRequest(wire.NewStringID(uuid.NewString()), wire.MethodRequestPermission, params)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return f
}

func TestFirstDenyLikeOptionPrefersDenyKind(t *testing.T) {
	opts := []wire.PermissionOption{
		{OptionID: "1", Kind: wire.OptionAllowOnce},
		{OptionID: "2", Kind: wire.OptionDenyAlways},
		{OptionID: "3", Kind: wire.OptionRejectOnce},
	}
	if got := firstDenyLikeOption(opts); got != "2" {
		t.Fatalf("firstDenyLikeOption = %q, want 2", got)
	}
}

func TestFirstDenyLikeOptionFallsBackToFirst(t *testing.T) {
	opts := []wire.PermissionOption{{OptionID: "only", Kind: wire.OptionAllowOnce}}
	if got := firstDenyLikeOption(opts); got != "only" {
		t.Fatalf("firstDenyLikeOption = %q, want only", got)
	}
}

func TestFirstDenyLikeOptionEmptyOptions(t *testing.T) {
	if got := firstDenyLikeOption(nil); got != "" {
		t.Fatalf("firstDenyLikeOption = %q, want empty", got)
	}
}

func TestHandleRequestPermissionHiddenTurnAutoResolvesSilently(t *testing.T) {
	c, tr, _ := newTestConversation()
	c.currentHidden = wire.HiddenTurn

	opts := []wire.PermissionOption{
		{OptionID: "allow", Kind: wire.OptionAllowOnce},
		{OptionID: "deny", Kind: wire.OptionDeny},
	}
	f := newPermissionRequestFrame(t, "tc1", opts)
	c.handleRequestPermission(f, replayMeta{})

	c.mu.Lock()
	pendingCount := len(c.pending)
	c.mu.Unlock()
	if pendingCount != 0 {
		t.Fatalf("pending = %d, want 0 (auto-resolved)", pendingCount)
	}

	if len(tr.sent) != 2 {
		t.Fatalf("sent %d frames, want 2 (response + provide_permission)", len(tr.sent))
	}
	if !strings.Contains(string(tr.sent[0]), `"optionId":"deny"`) {
		t.Fatalf("response did not select deny option: %s", tr.sent[0])
	}
	if !strings.Contains(string(tr.sent[1]), wire.MethodProvidePermission) {
		t.Fatalf("second frame is not %s: %s", wire.MethodProvidePermission, tr.sent[1])
	}
}

func TestHandleRequestPermissionVisibleAddsPendingAndNotifies(t *testing.T) {
	c, tr, _ := newTestConversation()
	c.currentHidden = wire.HiddenNone

	var got []Notification
	c.opts.Sink = func(n Notification) { got = append(got, n) }

	opts := []wire.PermissionOption{{OptionID: "allow", Kind: wire.OptionAllowOnce}}
	f := newPermissionRequestFrame(t, "tc1", opts)
	c.handleRequestPermission(f, replayMeta{})

	if len(tr.sent) != 0 {
		t.Fatalf("sent %d frames, want 0 until host resolves", len(tr.sent))
	}

	c.mu.Lock()
	_, pending := c.pending[f.ID.String()]
	c.mu.Unlock()
	if !pending {
		t.Fatal("expected a pending approval")
	}

	if len(got) != 1 || got[0].Kind != NotifyPermissionRequest {
		t.Fatalf("notifications = %+v, want one NotifyPermissionRequest", got)
	}
}

func TestResolvePermissionSendsDoubleSignalAndClearsPending(t *testing.T) {
	c, tr, _ := newTestConversation()
	c.currentHidden = wire.HiddenNone

	opts := []wire.PermissionOption{{OptionID: "allow", Kind: wire.OptionAllowOnce}}
	f := newPermissionRequestFrame(t, "tc1", opts)
	c.handleRequestPermission(f, replayMeta{})

	if err := c.ResolvePermission(f.ID.String(), "allow"); err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}

	if len(tr.sent) != 2 {
		t.Fatalf("sent %d frames, want 2 (response + provide_permission)", len(tr.sent))
	}
	if !strings.Contains(string(tr.sent[0]), `"optionId":"allow"`) {
		t.Fatalf("response did not carry chosen option: %s", tr.sent[0])
	}
	if !strings.Contains(string(tr.sent[1]), wire.MethodProvidePermission) {
		t.Fatalf("second frame is not %s: %s", wire.MethodProvidePermission, tr.sent[1])
	}

	c.mu.Lock()
	_, stillPending := c.pending[f.ID.String()]
	c.mu.Unlock()
	if stillPending {
		t.Fatal("expected pending approval to be cleared")
	}
}

func TestResolvePermissionUnknownRequestIDIsNoop(t *testing.T) {
	c, tr, _ := newTestConversation()
	if err := c.ResolvePermission("does-not-exist", "allow"); err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}
	if len(tr.sent) != 0 {
		t.Fatalf("sent %d frames, want 0", len(tr.sent))
	}
}

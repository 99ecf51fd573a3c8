package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// Transport is the minimal outbound capability the reconstructor needs;
// Connection implements it over a gorilla/websocket connection.
type Transport interface {
	Send(data []byte) error
}

// replayMeta carries the provenance of one frame through Conversation's
// handlers: zero-valued for a live frame, populated when the frame was
// unwrapped from a bridge/replay envelope.
type replayMeta struct {
	isReplay  bool
	replayID  int64
	timestamp int64
	turnID    int64
	hidden    wire.HiddenMode
}

// Conversation is the client-side reconstructor (C5): it consumes wire
// frames, rebuilds an ordered conversation, rectifies overlapping
// streaming chunks, maintains the tool-call lifecycle, and exposes a
// Sink of arrival-ordered Notifications.
//
// Grounded on the mutex-protected registry idiom of
// schmitthub-clawker's internal/socketbridge.Manager, adapted from a
// map-of-subprocesses to a single ordered conversation under one lock.
type Conversation struct {
	opts Options

	mu            sync.Mutex
	messages      []any // *UserMessage or *AssistantMessage, in arrival order
	current       *AssistantMessage
	currentHidden wire.HiddenMode
	inTurn        bool
	toolIndex     map[string]*ToolCall
	pending       map[string]*PendingApproval
	seq           int64
	idSeq         int64
	sessionID     string

	transport Transport
}

// Options configures a new Conversation.
type Options struct {
	Sink             Sink
	DiffContextLines int // clamped non-negative; config.DefaultClientConfig supplies 3
}

// New constructs a Conversation with no transport attached yet; callers
// typically build one via Connection instead of directly.
func New(opts Options) *Conversation {
	if opts.DiffContextLines < 0 {
		opts.DiffContextLines = 0
	}
	return &Conversation{
		opts:      opts,
		toolIndex: make(map[string]*ToolCall),
		pending:   make(map[string]*PendingApproval),
	}
}

// SetTransport attaches (or replaces) the outbound transport, e.g. after
// a reconnect.
func (c *Conversation) SetTransport(t Transport) {
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
}

// SetSessionID records the session id the host obtained from session/new,
// used to populate subsequent requests this Conversation originates.
func (c *Conversation) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// SessionID returns the currently known session id.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Messages returns a snapshot of the ordered conversation (*UserMessage
// and *AssistantMessage values) built so far.
func (c *Conversation) Messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) send(f *wire.RawFrame) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return fmt.Errorf("client: no transport attached")
	}
	data, err := f.Encode()
	if err != nil {
		return fmt.Errorf("client: encode frame: %w", err)
	}
	return t.Send(data)
}

func (c *Conversation) nextSeqLocked() int64 {
	c.seq++
	return c.seq
}

func (c *Conversation) nextSeq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSeqLocked()
}

func (c *Conversation) nowMillisLocked(meta replayMeta) int64 {
	if meta.isReplay {
		return meta.timestamp
	}
	return time.Now().UnixMilli()
}

func (c *Conversation) hiddenLocked(meta replayMeta) wire.HiddenMode {
	if meta.isReplay {
		return meta.hidden
	}
	return c.currentHidden
}

// effectiveHidden is hiddenLocked's unlocked counterpart, for callers
// (permission.go) that haven't already taken c.mu.
func (c *Conversation) effectiveHidden(meta replayMeta) wire.HiddenMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hiddenLocked(meta)
}

// mintIDLocked mints a reproducible id: a timestamp plus a strictly
// increasing counter. During replay intake the timestamp is the
// envelope's original timestamp rather than wall-clock time, so
// re-processing the same replay stream mints the same ids. Must be
// called with c.mu held.
func (c *Conversation) mintIDLocked(meta replayMeta) string {
	c.idSeq++
	return fmt.Sprintf("%d-%d", c.nowMillisLocked(meta), c.idSeq)
}

// allowed decides whether a notification may reach the host under the
// current turn's hidden-mode gating. Internal state is always updated
// by the caller regardless of this check; it only
// governs whether a Notification reaches the Sink.
func allowed(kind NotifyKind, hidden wire.HiddenMode) bool {
	switch kind {
	case NotifyUserMessage:
		return !hidden.SuppressesUser()
	case NotifyAssistantDelta, NotifyAssistantFinal, NotifyToolCall, NotifyToolCallUpdate, NotifyToolCallCompleted, NotifyPermissionRequest:
		return !hidden.SuppressesAssistant()
	default:
		return true
	}
}

// deliver is the single gate every notification passes through. seq and
// timestamp are supplied by the caller (usually already minted under the
// conversation lock alongside the state change the notification
// describes), so delivering it never perturbs the arrival-order counter.
func (c *Conversation) deliver(n Notification, hidden wire.HiddenMode, seq, ts int64, meta replayMeta) {
	if !allowed(n.Kind, hidden) {
		return
	}
	n.Seq = seq
	n.Timestamp = ts
	n.IsReplay = meta.isReplay
	n.ReplayID = meta.replayID
	n.TurnID = meta.turnID
	n.Hidden = hidden
	if c.opts.Sink != nil {
		c.opts.Sink(n)
	}
}

// emit mints a fresh seq/timestamp and delivers n; used by handlers that
// don't already hold the lock from an earlier state mutation.
func (c *Conversation) emit(n Notification, meta replayMeta) {
	c.mu.Lock()
	hidden := c.hiddenLocked(meta)
	seq := c.nextSeqLocked()
	ts := c.nowMillisLocked(meta)
	c.mu.Unlock()
	c.deliver(n, hidden, seq, ts, meta)
}

// Prompt submits a user prompt: the client records the prompt locally
// with a generated id and does not wait for the server to echo it,
// then transitions into in-turn state.
func (c *Conversation) Prompt(text string, hidden wire.HiddenMode) (*UserMessage, error) {
	hidden = wire.Normalize(hidden)
	meta := replayMeta{}

	c.mu.Lock()
	c.currentHidden = hidden
	c.inTurn = true
	c.current = nil
	c.toolIndex = make(map[string]*ToolCall)
	id := c.mintIDLocked(meta)
	now := c.nowMillisLocked(meta)
	user := &UserMessage{ID: id, Role: "user", Text: text, Hidden: hidden.SuppressesUser(), Timestamp: now}
	seq := c.nextSeqLocked()
	user.Seq = seq
	c.messages = append(c.messages, user)
	sessionID := c.sessionID
	c.mu.Unlock()

	c.deliver(Notification{Kind: NotifyUserMessage, User: user}, hidden, seq, now, meta)

	var pm promptMeta
	if hidden != wire.HiddenNone {
		pm.Hidden = string(hidden)
	}
	params := promptParams{SessionID: sessionID, Prompt: []promptItem{{Type: "text", Text: text, Meta: &pm}}}
	reqID := wire.NewStringID(uuid.NewString())
	frame, err := wire.NewRequest(reqID, wire.MethodSessionPrompt, params)
	if err != nil {
		return user, fmt.Errorf("client: build session/prompt: %w", err)
	}
	return user, c.send(frame)
}

// Cancel issues session/cancel and optimistically transitions out of
// in-turn state, synthesizing a turn-completed notification with reason
// "canceled".
func (c *Conversation) Cancel() error {
	c.mu.Lock()
	c.current = nil
	c.inTurn = false
	c.mu.Unlock()

	nf, err := wire.NewNotification(wire.MethodSessionCancel, map[string]string{"sessionId": c.SessionID()})
	if err == nil {
		_ = c.send(nf)
	}

	c.emit(Notification{Kind: NotifyTurnCompleted, Reason: "canceled"}, replayMeta{})
	return err
}

// HandleFrame dispatches one live (non-replay-wrapped) wire frame.
func (c *Conversation) HandleFrame(f *wire.RawFrame) {
	c.handleFrame(f, replayMeta{})
}

func (c *Conversation) handleFrame(f *wire.RawFrame, meta replayMeta) {
	switch f.Classify() {
	case wire.KindRequest:
		switch f.Method {
		case wire.MethodRequestPermission:
			c.handleRequestPermission(f, meta)
		case wire.MethodSessionPrompt:
			c.handleReplayedPrompt(f, meta)
		}
	case wire.KindNotification:
		switch f.Method {
		case wire.MethodSessionUpdate:
			c.handleSessionUpdate(f, meta)
		case wire.MethodAuthURL:
			c.handleAuthURL(f, meta)
		case wire.MethodBridgeStructuredEvent:
			c.handleStructuredEvent(f, meta)
		case wire.MethodBridgeReplay:
			c.handleReplayEnvelope(f)
		}
	case wire.KindResponse:
		c.handleResponse(f, meta)
	}
}

// handleReplayEnvelope unwraps a bridge/replay frame and re-dispatches
// its inner frame with replay provenance attached: the time source is
// substituted with the envelope's original
// timestamp so any identifiers minted while processing it are
// reproducible.
func (c *Conversation) handleReplayEnvelope(f *wire.RawFrame) {
	var env replayEnvelopeParams
	if err := json.Unmarshal(f.Params, &env); err != nil {
		return
	}
	var spliced replaySpliced
	_ = json.Unmarshal(env.Data, &spliced)

	inner, err := wire.Decode(env.Data)
	if err != nil {
		return
	}

	meta := replayMeta{
		isReplay:  true,
		replayID:  env.ReplayID,
		timestamp: env.Timestamp,
		turnID:    spliced.TurnID,
		hidden:    wire.Normalize(wire.HiddenMode(spliced.HiddenMode)),
	}
	c.handleFrame(inner, meta)
}

// handleReplayedPrompt synthesizes a local user message for a
// session/prompt frame seen only via a replay envelope: either a live
// peer's echoed prompt or a historical prompt replayed on reconnect
//.
func (c *Conversation) handleReplayedPrompt(f *wire.RawFrame, meta replayMeta) {
	var params promptParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return
	}
	var text string
	for _, item := range params.Prompt {
		text += item.Text
	}

	hidden := meta.hidden
	if !meta.isReplay && len(params.Prompt) > 0 && params.Prompt[0].Meta != nil {
		hidden = wire.Normalize(wire.HiddenMode(params.Prompt[0].Meta.Hidden))
	}

	c.mu.Lock()
	id := c.mintIDLocked(meta)
	now := c.nowMillisLocked(meta)
	user := &UserMessage{ID: id, Role: "user", Text: text, Hidden: hidden.SuppressesUser(), Timestamp: now}
	seq := c.nextSeqLocked()
	user.Seq = seq
	c.messages = append(c.messages, user)
	c.mu.Unlock()

	c.deliver(Notification{Kind: NotifyUserMessage, User: user}, hidden, seq, now, meta)
}

func (c *Conversation) handleAuthURL(f *wire.RawFrame, meta replayMeta) {
	var p authURLParams
	if err := json.Unmarshal(f.Params, &p); err != nil {
		return
	}
	c.emit(Notification{Kind: NotifyAuthURL, AuthURL: p.URL}, meta)
}

func (c *Conversation) handleStructuredEvent(f *wire.RawFrame, meta replayMeta) {
	var p structuredEventParams
	if err := json.Unmarshal(f.Params, &p); err != nil {
		return
	}
	c.emit(Notification{
		Kind: NotifyStructuredEvent,
		Event: &StructuredEvent{
			SessionID: p.SessionID,
			Type:      p.Type,
			Payload:   []byte(p.Payload),
			Raw:       p.Raw,
			Err:       p.Err,
		},
	}, meta)
}

func (c *Conversation) handleResponse(f *wire.RawFrame, meta replayMeta) {
	if f.Error != nil {
		c.emit(Notification{Kind: NotifyError, Reason: f.Error.Message}, meta)
		return
	}
	if len(f.Result) == 0 {
		return
	}
	var res promptResult
	if err := json.Unmarshal(f.Result, &res); err != nil {
		return
	}
	if res.StopReason != "" {
		c.finalizeTurn(meta, res.StopReason)
	}
}

func (c *Conversation) handleSessionUpdate(f *wire.RawFrame, meta replayMeta) {
	var env sessionUpdateEnvelope
	if err := json.Unmarshal(f.Params, &env); err != nil {
		return
	}
	var probe updateKindProbe
	if err := json.Unmarshal(env.Update, &probe); err != nil {
		return
	}

	switch wire.SessionUpdateKind(probe.SessionUpdate) {
	case wire.UpdateAgentMessageChunk:
		var chunk contentChunkPayload
		if json.Unmarshal(env.Update, &chunk) == nil {
			c.appendChunk(PartText, chunk.Content.Text, meta)
		}
	case wire.UpdateAgentThoughtChunk:
		var chunk contentChunkPayload
		if json.Unmarshal(env.Update, &chunk) == nil {
			c.appendChunk(PartThought, chunk.Content.Text, meta)
		}
	case wire.UpdateToolCall:
		var p newToolCallPayload
		if json.Unmarshal(env.Update, &p) == nil {
			c.openToolCall(p, meta)
		}
	case wire.UpdateToolCallUpdate:
		var p toolCallUpdatePayload
		if json.Unmarshal(env.Update, &p) == nil {
			c.updateToolCall(p, meta)
		}
	case wire.UpdateEndOfTurn:
		c.finalizeTurn(meta, "end_of_turn")
	}
}

// ensureAssistantLocked returns the current in-flight assistant message,
// creating one if this is the first content update of the turn. Must be
// called with c.mu held.
func (c *Conversation) ensureAssistantLocked(meta replayMeta) *AssistantMessage {
	if c.current != nil {
		return c.current
	}
	hidden := c.hiddenLocked(meta)
	msg := &AssistantMessage{
		ID:        c.mintIDLocked(meta),
		Role:      "assistant",
		Hidden:    hidden.SuppressesAssistant(),
		Timestamp: c.nowMillisLocked(meta),
	}
	c.current = msg
	c.toolIndex = make(map[string]*ToolCall)
	c.messages = append(c.messages, msg)
	return msg
}

// appendChunk handles an assistant content update by opening-or-extending
// the current
// part of the requested kind, rectifies the incoming chunk against that
// part's accumulator (not the flat one), and appends the unique new
// segment to both.
func (c *Conversation) appendChunk(kind PartKind, text string, meta replayMeta) {
	c.mu.Lock()
	msg := c.ensureAssistantLocked(meta)
	hidden := c.hiddenLocked(meta)

	var part *Part
	if n := len(msg.Content); n > 0 && msg.Content[n-1].Kind == kind {
		part = &msg.Content[n-1]
	} else {
		msg.Content = append(msg.Content, Part{Kind: kind})
		part = &msg.Content[len(msg.Content)-1]
	}

	var accum, flat *string
	if kind == PartText {
		accum, flat = &part.Text, &msg.Text
	} else {
		accum, flat = &part.Thought, &msg.Thought
	}

	n := rectify(*accum, text)
	*accum += n
	*flat += n
	seq := c.nextSeqLocked()
	msg.Seq = seq
	ts := c.nowMillisLocked(meta)
	c.mu.Unlock()

	c.deliver(Notification{Kind: NotifyAssistantDelta, Assistant: msg, Delta: n}, hidden, seq, ts, meta)
}

func (c *Conversation) openToolCall(p newToolCallPayload, meta replayMeta) {
	c.mu.Lock()
	msg := c.ensureAssistantLocked(meta)
	hidden := c.hiddenLocked(meta)
	seq := c.nextSeqLocked()
	ts := c.nowMillisLocked(meta)
	tc := newToolCall(p, c.opts.DiffContextLines, seq, ts)
	msg.Content = append(msg.Content, Part{Kind: PartToolCall, ToolCall: tc})
	msg.ToolCalls = append(msg.ToolCalls, tc)
	msg.Seq = seq
	c.toolIndex[tc.ID] = tc
	c.mu.Unlock()

	c.deliver(Notification{Kind: NotifyToolCall, Assistant: msg, ToolCall: tc}, hidden, seq, ts, meta)
}

func (c *Conversation) updateToolCall(p toolCallUpdatePayload, meta replayMeta) {
	c.mu.Lock()
	msg := c.current
	hidden := c.hiddenLocked(meta)
	tc, ok := c.toolIndex[p.ToolCallID]
	if !ok {
		tc = &ToolCall{ID: p.ToolCallID}
		c.toolIndex[tc.ID] = tc
		if msg != nil {
			msg.ToolCalls = append(msg.ToolCalls, tc)
			msg.Content = append(msg.Content, Part{Kind: PartToolCall, ToolCall: tc})
		}
	}
	seq := c.nextSeqLocked()
	ts := c.nowMillisLocked(meta)
	applyToolCallUpdate(tc, p, c.opts.DiffContextLines, seq, ts)
	if msg != nil {
		msg.Seq = seq
	}
	terminal := tc.Status.IsTerminal()
	c.mu.Unlock()

	c.deliver(Notification{Kind: NotifyToolCallUpdate, Assistant: msg, ToolCall: tc}, hidden, seq, ts, meta)
	if terminal {
		c.emit(Notification{Kind: NotifyToolCallCompleted, Assistant: msg, ToolCall: tc}, meta)
	}
}

// finalizeTurn completes the turn lifecycle: the currently-active
// assistant message is finalized and a final-text
// notification fires exactly once per assistant message, guarded by
// clearing c.current so a second completion signal for the same turn
// (an end_of_turn update and a stopReason response can both arrive) does
// not fire it again. Every signal still emits NotifyTurnCompleted.
func (c *Conversation) finalizeTurn(meta replayMeta, reason string) {
	c.mu.Lock()
	msg := c.current
	hidden := c.hiddenLocked(meta)
	if msg != nil {
		msg.StopReason = reason
	}
	c.current = nil
	c.inTurn = false
	seq := c.nextSeqLocked()
	ts := c.nowMillisLocked(meta)
	c.mu.Unlock()

	if msg != nil {
		c.deliver(Notification{Kind: NotifyAssistantFinal, Assistant: msg, Reason: reason}, hidden, seq, ts, meta)
	}
	c.emit(Notification{Kind: NotifyTurnCompleted, Reason: reason}, meta)
}

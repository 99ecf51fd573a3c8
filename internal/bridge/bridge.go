// Package bridge implements the session/turn multiplexer (C4): the wire
// listener, the replay ring buffer, the turn counter, the hidden-mode
// table, and the outgoing tag-parsing transform instance.
//
// Grounded on go-mizu-mizu's chat blueprint ws.Hub/ws.Connection (a
// registry of live WebSocket connections, a buffered per-connection send
// channel, broadcast fan-out under a mutex), adapted from a Discord-style
// gateway to the bridge's JSON-RPC replay/hidden-mode semantics.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/schmitthub/clawker-bridge/internal/logger"
	"github.com/schmitthub/clawker-bridge/internal/supervisor"
	"github.com/schmitthub/clawker-bridge/internal/tagparser"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// CheckpointFunc is invoked when a turn ends with a non-empty modified-file
// set. Implemented by internal/checkpoint.
type CheckpointFunc func(ctx context.Context, sessionID string, modifiedFiles []string)

// Bridge owns the live client registry, the replay ring, and the
// hidden-mode table, and mediates between connected clients and the
// supervised subprocess.
type Bridge struct {
	sup    *supervisor.Supervisor
	ring   *Ring
	parser *tagparser.Parser

	checkpoint CheckpointFunc

	mu           sync.Mutex
	hiddenByTurn map[int64]wire.HiddenMode

	clientsMu sync.Mutex
	clients   map[*Client]struct{}
}

// Options configures a new Bridge.
type Options struct {
	Supervisor     *supervisor.Supervisor
	RingCapacity   int
	TagMode        tagparser.Mode
	Tags           []tagparser.Tag
	Checkpoint     CheckpointFunc
}

// New builds a Bridge from opts. It does not register any supervisor
// callbacks itself; Callbacks and SetSupervisor do that wiring.
func New(opts Options) *Bridge {
	b := &Bridge{
		sup:          opts.Supervisor,
		ring:         NewRing(opts.RingCapacity),
		parser:       tagparser.New(opts.TagMode, opts.Tags),
		checkpoint:   opts.Checkpoint,
		hiddenByTurn: make(map[int64]wire.HiddenMode),
		clients:      make(map[*Client]struct{}),
	}
	return b
}

// SetSupervisor attaches the supervisor this Bridge mediates for. The
// constructor that wants a Bridge wired to supervisor.New's Callbacks
// must build the Bridge first (Callbacks only binds method values, it
// doesn't dereference sup), pass Bridge.Callbacks() into supervisor.New,
// then call SetSupervisor before serving any connection.
func (b *Bridge) SetSupervisor(sup *supervisor.Supervisor) {
	b.sup = sup
}

// Callbacks returns the supervisor.Callbacks this Bridge should be wired
// with; the caller passes this to supervisor.New.
func (b *Bridge) Callbacks() supervisor.Callbacks {
	return supervisor.Callbacks{
		OnFrame:   b.handleOutbound,
		OnAuthURL: b.handleAuthURL,
		OnCrash:   b.handleCrash,
		OnRestart: b.handleRestart,
	}
}

func (b *Bridge) setHidden(turn int64, mode wire.HiddenMode) {
	b.mu.Lock()
	b.hiddenByTurn[turn] = mode
	b.mu.Unlock()
}

func (b *Bridge) hiddenFor(turn int64) wire.HiddenMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.hiddenByTurn[turn]; ok {
		return m
	}
	return wire.HiddenNone
}

// currentTurn returns the supervisor's current turn counter value without
// incrementing it, used to tag non-prompt outbound frames.
func (b *Bridge) currentTurn() int64 {
	return b.sup.CurrentTurn()
}

// HandleInbound applies the inbound frame policy to one client-originated
// wire datagram.
func (b *Bridge) HandleInbound(sender *Client, data []byte) {
	f, err := wire.Decode(data)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: dropping malformed inbound frame")
		return
	}

	if f.Method == wire.MethodSubmitAuthCode {
		b.handleAuthCodeSubmission(f)
		return
	}

	if b.sup.AuthPending() {
		logger.Log.Info().Str("method", f.Method).Msg("bridge: dropping inbound frame while auth pending")
		return
	}

	if f.Method == wire.MethodSessionPrompt {
		b.handlePrompt(sender, f)
		return
	}

	if err := b.sup.WriteStdin(f); err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: forwarding inbound frame to subprocess")
	}
}

func (b *Bridge) handleAuthCodeSubmission(f *wire.RawFrame) {
	var params submitAuthCodeParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: invalid submitAuthCode params")
		return
	}
	if err := b.sup.SubmitAuthCode(params.Code); err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: submit auth code")
	}
}

func (b *Bridge) handlePrompt(sender *Client, f *wire.RawFrame) {
	var params SessionPromptParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: invalid session/prompt params")
		return
	}

	hidden := wire.HiddenNone
	if len(params.Prompt) > 0 && params.Prompt[0].Meta != nil {
		hidden = wire.Normalize(wire.HiddenMode(params.Prompt[0].Meta.Hidden))
	}

	turn := b.sup.NextTurn()
	b.setHidden(turn, hidden)

	raw, _ := f.Encode()
	b.ring.Append(Event{Timestamp: nowMillis(), TurnID: turn, Hidden: hidden, Payload: raw})

	b.broadcastReplayExcept(sender, raw, turn, hidden)

	stripped := params
	stripped.Prompt = make([]PromptItem, len(params.Prompt))
	copy(stripped.Prompt, params.Prompt)
	for i := range stripped.Prompt {
		stripped.Prompt[i].Meta = nil
	}
	strippedRaw, err := json.Marshal(stripped)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: re-encode stripped prompt")
		return
	}
	f.Params = strippedRaw

	if err := b.sup.WriteStdin(f); err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: forwarding prompt to subprocess")
	}
}

// handleOutbound applies the outbound frame policy to one
// subprocess-originated frame.
func (b *Bridge) handleOutbound(f *wire.RawFrame) {
	turn := b.currentTurn()
	hidden := b.hiddenFor(turn)

	frames := b.applyOutgoingTransform(f)
	for _, frame := range frames {
		raw, err := frame.Encode()
		if err != nil {
			logger.Log.Warn().Err(err).Msg("bridge: encode outbound frame")
			continue
		}

		if isStreamOfRecord(frame) {
			b.ring.Append(Event{Timestamp: nowMillis(), TurnID: turn, Hidden: hidden, Payload: raw})
		}

		b.broadcastAll(raw)

		if isEndOfTurnFrame(frame) || isResponseCompletedFrame(frame) {
			b.maybeCheckpoint()
		}
	}
}

func (b *Bridge) handleAuthURL(url string) {
	nf, err := wire.NewNotification(wire.MethodAuthURL, map[string]string{"url": url})
	if err != nil {
		return
	}
	raw, err := nf.Encode()
	if err != nil {
		return
	}
	turn := b.currentTurn()
	b.ring.Append(Event{Timestamp: nowMillis(), TurnID: turn, Hidden: b.hiddenFor(turn), Payload: raw})
	b.broadcastAll(raw)
}

func (b *Bridge) handleCrash(err error) {
	logger.Log.Warn().Err(err).Msg("bridge: subprocess crashed")
	b.mu.Lock()
	b.hiddenByTurn = make(map[int64]wire.HiddenMode)
	b.mu.Unlock()
}

func (b *Bridge) handleRestart(sessionID string) {
	logger.Log.Info().Str("session_id", sessionID).Msg("bridge: subprocess restarted")
}

func (b *Bridge) maybeCheckpoint() {
	files := b.sup.ModifiedFiles()
	if len(files) == 0 {
		return
	}
	sessionID := b.sup.SessionID()
	b.sup.ClearModifiedFiles()
	if b.checkpoint == nil {
		return
	}
	go b.checkpoint(context.Background(), sessionID, files)
}

func isStreamOfRecord(f *wire.RawFrame) bool {
	switch f.Method {
	case wire.MethodSessionUpdate, wire.MethodRequestPermission, wire.MethodAuthURL, wire.MethodBridgeStructuredEvent:
		return true
	default:
		return false
	}
}

func isEndOfTurnFrame(f *wire.RawFrame) bool {
	if f.Method != wire.MethodSessionUpdate {
		return false
	}
	var params sessionUpdateParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return false
	}
	var update updatePayload
	if err := json.Unmarshal(params.Update, &update); err != nil {
		return false
	}
	return wire.SessionUpdateKind(update.SessionUpdate) == wire.UpdateEndOfTurn
}

// promptResult is the result shape of a prompt response; a non-empty
// StopReason finalizes the turn just as an end_of_turn update does.
type promptResult struct {
	StopReason string `json:"stopReason,omitempty"`
}

// isResponseCompletedFrame reports whether f is a JSON-RPC response
// carrying a non-empty stopReason: a turn may end via an end_of_turn
// session/update or via the response to the original prompt, and the
// checkpoint hook must fire on either.
func isResponseCompletedFrame(f *wire.RawFrame) bool {
	if f.Method != "" || f.ID == nil || !f.ID.IsSet() || f.Result == nil {
		return false
	}
	var result promptResult
	if err := json.Unmarshal(f.Result, &result); err != nil {
		return false
	}
	return result.StopReason != ""
}

func nowMillis() int64 { return time.Now().UnixMilli() }

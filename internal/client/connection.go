package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/schmitthub/clawker-bridge/internal/config"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

const (
	connWriteWait  = 10 * time.Second
	connPongWait   = 60 * time.Second
	connPingPeriod = (connPongWait * 9) / 10
	connMaxMessage = 1024 * 1024
	connSendBuffer = 256

	// reconnectBackoff is the fixed delay between dial attempts; reconnect
	// keeps retrying at this interval until the application disposes it.
	reconnectBackoff = 2 * time.Second
)

// Connection is a reconnecting WebSocket Transport for a Conversation,
// grounded on internal/bridge.Client's sendCh/readPump/writePump/once-
// guarded-Close idiom (itself grounded on go-mizu-mizu's ws.Connection),
// mirrored here for the dial side instead of the accept side.
type Connection struct {
	cfg  *config.ClientConfig
	conv *Conversation

	mu       sync.Mutex
	conn     *websocket.Conn
	sendCh   chan []byte
	disposed bool
	doneCh   chan struct{}

	newMu  sync.Mutex
	newID  string
	newRes chan sessionNewOutcome
}

type sessionNewOutcome struct {
	sessionID string
	err       error
}

// Dial opens the first connection, performs the session/new handshake
// (resuming cfg.InitialSessionID if set, otherwise creating a session
// rooted at cfg.InitialCwd), attaches itself to conv as its Transport,
// and starts the background reconnect loop.
func Dial(cfg *config.ClientConfig, conv *Conversation) (*Connection, error) {
	c := &Connection{
		cfg:    cfg,
		conv:   conv,
		sendCh: make(chan []byte, connSendBuffer),
		doneCh: make(chan struct{}),
	}

	conn, err := c.dialOnce()
	if err != nil {
		return nil, err
	}
	c.setConn(conn)
	conv.SetTransport(c)

	go c.writePump()
	go c.serveLoop(conn)

	sessionID, err := c.handshake()
	if err != nil {
		c.Close()
		return nil, err
	}
	conv.SetSessionID(sessionID)

	return c, nil
}

func (c *Connection) dialOnce() (*websocket.Conn, error) {
	u, err := buildDialURL(c.cfg)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", u, err)
	}
	return conn, nil
}

func buildDialURL(cfg *config.ClientConfig) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("client: parse url %q: %w", cfg.URL, err)
	}
	q := u.Query()
	if cfg.ReplayLimit > 0 {
		q.Set("limit", strconv.Itoa(cfg.ReplayLimit))
	}
	if cfg.ReplaySince != 0 {
		q.Set("since", strconv.FormatInt(cfg.ReplaySince, 10))
	}
	if cfg.ReplayBefore != 0 {
		q.Set("before", strconv.FormatInt(cfg.ReplayBefore, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Connection) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// handshake sends session/new and blocks for its matching response,
// which the read loop intercepts before it would otherwise reach
// Conversation.handleResponse.
func (c *Connection) handshake() (string, error) {
	reqID := newRequestID()
	params := sessionNewWireParams(sessionNewParams{Cwd: c.cfg.InitialCwd, Model: c.cfg.ModelHint}, c.cfg.InitialSessionID)

	resCh := make(chan sessionNewOutcome, 1)
	c.newMu.Lock()
	c.newID = reqID
	c.newRes = resCh
	c.newMu.Unlock()

	frame, err := wire.NewRequest(wire.NewStringID(reqID), wire.MethodSessionNew, params)
	if err != nil {
		return "", fmt.Errorf("client: build session/new: %w", err)
	}
	if err := c.Send(mustEncode(frame)); err != nil {
		return "", err
	}

	select {
	case out := <-resCh:
		return out.sessionID, out.err
	case <-c.doneCh:
		return "", fmt.Errorf("client: closed")
	case <-time.After(30 * time.Second):
		return "", fmt.Errorf("client: session/new timed out")
	}
}

// sessionNewWireParams folds an optional resume session id into the
// session/new params without adding a field sessionNewParams doesn't
// otherwise need for the create path.
func sessionNewWireParams(p sessionNewParams, resumeID string) any {
	if resumeID == "" {
		return p
	}
	return struct {
		sessionNewParams
		SessionID string `json:"sessionId"`
	}{sessionNewParams: p, SessionID: resumeID}
}

func mustEncode(f *wire.RawFrame) []byte {
	data, _ := f.Encode()
	return data
}

// Send implements Transport by enqueuing onto the write pump's buffered
// channel; a full buffer drops the message and returns an error rather
// than blocking the caller.
func (c *Connection) Send(data []byte) error {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return fmt.Errorf("client: closed")
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return fmt.Errorf("client: send buffer full, message dropped")
	}
}

// Close disposes the connection: outstanding and future pending requests
// reject with a "closed" error, and the reconnect loop stops.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.doneCh)
	if conn != nil {
		conn.Close()
	}

	c.newMu.Lock()
	if c.newRes != nil {
		select {
		case c.newRes <- sessionNewOutcome{err: fmt.Errorf("client: closed")}:
		default:
		}
		c.newRes = nil
	}
	c.newMu.Unlock()
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(connPingPeriod)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		select {
		case <-c.doneCh:
			return
		case msg := <-c.sendCh:
			conn.SetWriteDeadline(time.Now().Add(connWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(connWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains one connection's inbound frames until it errors,
// dispatching each to either the pending session/new waiter or the
// Conversation. It returns when the connection breaks; serveLoop decides
// whether to redial.
func (c *Connection) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(connMaxMessage)
	conn.SetReadDeadline(time.Now().Add(connPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(connPongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := wire.Decode(data)
		if err != nil {
			continue
		}
		if c.interceptSessionNew(f) {
			continue
		}
		c.conv.handleFrame(f, replayMeta{})
	}
}

func (c *Connection) interceptSessionNew(f *wire.RawFrame) bool {
	if f.Classify() != wire.KindResponse || f.ID == nil {
		return false
	}
	c.newMu.Lock()
	matches := c.newID != "" && f.ID.String() == c.newID
	resCh := c.newRes
	if matches {
		c.newID = ""
		c.newRes = nil
	}
	c.newMu.Unlock()
	if !matches {
		return false
	}

	var out sessionNewOutcome
	if f.Error != nil {
		out.err = fmt.Errorf("client: session/new: %s", f.Error.Message)
	} else {
		var res sessionNewResult
		if err := json.Unmarshal(f.Result, &res); err != nil {
			out.err = fmt.Errorf("client: decode session/new result: %w", err)
		} else {
			out.sessionID = res.SessionID
		}
	}
	if resCh != nil {
		resCh <- out
	}
	return true
}

// serveLoop runs readLoop on successive connections, redialing with a
// fixed backoff whenever one breaks, until Close disposes the Connection.
func (c *Connection) serveLoop(conn *websocket.Conn) {
	c.readLoop(conn)

	for {
		c.mu.Lock()
		disposed := c.disposed
		c.mu.Unlock()
		if disposed {
			return
		}

		select {
		case <-c.doneCh:
			return
		case <-time.After(reconnectBackoff):
		}

		newConn, err := c.dialOnce()
		if err != nil {
			continue
		}
		c.setConn(newConn)
		go c.writePump()
		c.readLoop(newConn)
	}
}

var requestIDSeq struct {
	mu sync.Mutex
	n  int64
}

// newRequestID mints a process-local unique id for outgoing requests
// this package originates outside of a Conversation (session/new),
// avoiding a dependency on google/uuid for a value that never needs to
// be globally unique.
func newRequestID() string {
	requestIDSeq.mu.Lock()
	defer requestIDSeq.mu.Unlock()
	requestIDSeq.n++
	return fmt.Sprintf("conn-%d", requestIDSeq.n)
}

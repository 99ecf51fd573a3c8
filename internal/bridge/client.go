package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/schmitthub/clawker-bridge/internal/logger"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
	sendBuffer     = 256
)

// Client is one connected WebSocket peer, grounded on go-mizu-mizu's
// ws.Connection (dedicated read/write pumps, a buffered outbound channel,
// once-guarded Close).
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send enqueues a message for delivery. If the client's send buffer is
// full, the message is dropped and the client's connection is closed with
// a logged diagnostic, so a slow client never blocks the broadcast.
func (c *Client) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		logger.Log.Warn().Str("client_id", c.id).Msg("bridge: closing slow client")
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Close terminates the connection's pumps exactly once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		close(c.send)
		c.conn.Close()
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(onMessage func(*Client, []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		onMessage(c, data)
	}
}

// register adds a client to the live set.
func (b *Bridge) register(c *Client) {
	b.clientsMu.Lock()
	b.clients[c] = struct{}{}
	b.clientsMu.Unlock()
}

// unregister removes a client from the live set and closes it.
func (b *Bridge) unregister(c *Client) {
	b.clientsMu.Lock()
	delete(b.clients, c)
	b.clientsMu.Unlock()
	c.Close()
}

func (b *Bridge) broadcastAll(raw []byte) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	for c := range b.clients {
		c.Send(raw)
	}
}

func (b *Bridge) broadcastReplayExcept(sender *Client, raw []byte, turnID int64, hidden wire.HiddenMode) {
	ts := nowMillis()
	frame, err := wrapReplay(raw, turnID, hidden, ts, ts)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: wrap prompt peer-echo")
		return
	}
	data, err := frame.Encode()
	if err != nil {
		return
	}

	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	for c := range b.clients {
		if c == sender {
			continue
		}
		c.Send(data)
	}
}

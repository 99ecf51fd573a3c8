package bridge

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/schmitthub/clawker-bridge/internal/logger"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a WebSocket connection, replays the
// ring per the request's query parameters, re-sends a pending auth URL if
// any, and then services the connection until it closes.
func (b *Bridge) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("bridge: websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), conn)
	b.register(client)

	go client.writePump()
	b.replayOnConnect(client, parseReplayQuery(r))

	client.readPump(b.HandleInbound)
	b.unregister(client)
}

func parseReplayQuery(r *http.Request) ReplayQuery {
	q := r.URL.Query()
	var rq ReplayQuery
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rq.Limit = n
		}
	}
	if v := q.Get("since"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rq.Since = n
		}
	}
	if v := q.Get("before"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rq.Before = n
		}
	}
	return rq
}

// replayOnConnect selects the matching ring slice for a new connection,
// sends each entry as a bridge/replay envelope in
// stored order, then re-send any pending auth URL.
func (b *Bridge) replayOnConnect(c *Client, q ReplayQuery) {
	selected := selectReplay(b.ring.Snapshot(), q)
	for i, e := range selected {
		frame, err := wrapReplay(e.Payload, e.TurnID, e.Hidden, e.Timestamp, e.Timestamp+int64(i))
		if err != nil {
			logger.Log.Warn().Err(err).Msg("bridge: wrap replay entry")
			continue
		}
		data, err := frame.Encode()
		if err != nil {
			continue
		}
		c.Send(data)
	}

	if b.sup.AuthPending() {
		if url := b.sup.AuthURL(); url != "" {
			if nf, err := wire.NewNotification(wire.MethodAuthURL, map[string]string{"url": url}); err == nil {
				if data, err := nf.Encode(); err == nil {
					c.Send(data)
				}
			}
		}
	}
}

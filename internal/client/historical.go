package client

import (
	"time"

	"github.com/schmitthub/clawker-bridge/internal/config"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// FetchHistoricalSlice is a one-shot replay fetch: it opens a
// short-lived, non-reconnecting connection, waits until idle has passed
// with no replay frame arriving (the wait restarts on every replay frame,
// and ends after idle if none ever arrives), then closes the connection
// and returns the conversation
// reconstructed from whatever replay frames it saw.
func FetchHistoricalSlice(cfg *config.ClientConfig, idle time.Duration) (*Conversation, error) {
	resetCh := make(chan struct{}, 1)
	conv := New(Options{
		DiffContextLines: cfg.DiffContextLines,
		Sink: func(n Notification) {
			if n.IsReplay {
				select {
				case resetCh <- struct{}{}:
				default:
				}
			}
		},
	})

	conn, err := (&Connection{cfg: cfg}).dialOnce()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	type inbound struct {
		data []byte
		err  error
	}
	msgCh := make(chan inbound, 32)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			msgCh <- inbound{data: data, err: err}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case m := <-msgCh:
			if m.err != nil {
				return conv, nil
			}
			if f, err := wire.Decode(m.data); err == nil {
				conv.handleFrame(f, replayMeta{})
			}
			select {
			case <-resetCh:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(idle)
			default:
			}
		case <-timer.C:
			return conv, nil
		}
	}
}

// Package checkpoint implements the optional downstream checkpoint hook
//: a single HTTP POST fired after a turn ends with a
// non-empty modified-file set, telling some external system (a CI runner,
// a snapshot service) which files the agent touched.
//
// A short-timeout http.Client POSTs a small JSON body to a
// locally-configured
// URL) generalized from the host proxy's callback registration POST to
// an outbound webhook call, and on go-mizu-mizu's use of an HMAC-style
// shared secret header for inter-service calls.
package checkpoint

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/schmitthub/clawker-bridge/internal/logger"
)

const requestTimeout = 5 * time.Second

// Hook posts a checkpoint notification to url, signing the body with
// secret (if non-empty) via an X-Clawker-Signature header carrying the
// hex-encoded HMAC-SHA256 of the request body. A zero-value Hook (empty
// URL) is a no-op, letting callers construct one unconditionally from
// config.CheckpointConfig.
type Hook struct {
	URL    string
	Secret string

	client *http.Client
}

// New builds a Hook from a URL and shared secret. Pass an empty url to
// get a Hook whose Func is a no-op.
func New(url, secret string) *Hook {
	return &Hook{
		URL:    url,
		Secret: secret,
		client: &http.Client{Timeout: requestTimeout},
	}
}

type payload struct {
	SessionID     string   `json:"sessionId"`
	ModifiedFiles []string `json:"modifiedFiles"`
	Timestamp     int64    `json:"timestamp"`
}

// Func has the shape bridge.CheckpointFunc expects: it can be passed
// directly as bridge.Options.Checkpoint.
func (h *Hook) Func(ctx context.Context, sessionID string, modifiedFiles []string) {
	if err := h.notify(ctx, sessionID, modifiedFiles, time.Now().UnixMilli()); err != nil {
		logger.Log.Warn().Err(err).Str("session_id", sessionID).Msg("checkpoint: notify failed")
	}
}

func (h *Hook) notify(ctx context.Context, sessionID string, modifiedFiles []string, ts int64) error {
	if h == nil || h.URL == "" {
		return nil
	}

	body, err := json.Marshal(payload{SessionID: sessionID, ModifiedFiles: modifiedFiles, Timestamp: ts})
	if err != nil {
		return fmt.Errorf("checkpoint: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("checkpoint: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Secret != "" {
		req.Header.Set("X-Clawker-Signature", sign(h.Secret, body))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("checkpoint: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("checkpoint: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

package client

import (
	"encoding/json"

	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// requestPermissionParams is the session/request_permission request's
// params shape.
type requestPermissionParams struct {
	SessionID string `json:"sessionId"`
	ToolCall  struct {
		ToolCallID string `json:"toolCallId"`
		Name       string `json:"name,omitempty"`
		Title      string `json:"title,omitempty"`
	} `json:"toolCall"`
	Options []wire.PermissionOption `json:"options"`
}

// permissionOutcome is the {outcome:{outcome,optionId}} shape both the
// response to session/request_permission and the session/provide_permission
// notification carry.
type permissionOutcome struct {
	Outcome struct {
		Outcome  string `json:"outcome"`
		OptionID string `json:"optionId"`
	} `json:"outcome"`
}

func newPermissionOutcome(optionID string) permissionOutcome {
	var o permissionOutcome
	o.Outcome.Outcome = "selected"
	o.Outcome.OptionID = optionID
	return o
}

// handleRequestPermission applies the permission-handling policy: under
// hidden-mode assistant-suppression, auto-resolve by selecting the
// first deny/reject-like option without exposing the request; otherwise
// publish a PendingApproval and notify the host.
func (c *Conversation) handleRequestPermission(f *wire.RawFrame, meta replayMeta) {
	var params requestPermissionParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return
	}

	tc := c.toolCallForApproval(params, meta)

	approval := &PendingApproval{
		RequestID:    f.ID.String(),
		ToolCall:     tc,
		Options:      params.Options,
		requestFrame: f,
		sessionID:    params.SessionID,
	}

	if c.effectiveHidden(meta).SuppressesAssistant() {
		c.autoResolve(approval)
		return
	}

	c.mu.Lock()
	c.pending[approval.RequestID] = approval
	c.mu.Unlock()

	c.emit(Notification{
		Kind:     NotifyPermissionRequest,
		Approval: approval,
	}, meta)
}

// toolCallForApproval reuses the already-tracked ToolCall for this id if
// one exists (so the host sees the same pointer it has been updating),
// otherwise builds one from the request's embedded title/name.
func (c *Conversation) toolCallForApproval(params requestPermissionParams, meta replayMeta) *ToolCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tc, ok := c.toolIndex[params.ToolCall.ToolCallID]; ok {
		return tc
	}
	tc := &ToolCall{
		ID:     params.ToolCall.ToolCallID,
		Name:   params.ToolCall.Name,
		Title:  params.ToolCall.Title,
		Status: wire.ToolStatusQueued,
	}
	applyParsedTitle(tc)
	c.toolIndex[tc.ID] = tc
	return tc
}

// autoResolve implements the hidden-turn auto-rejection rule: select the
// first option whose kind begins with deny/reject, or the first option
// if none match, and resolve silently (no host-visible notification).
func (c *Conversation) autoResolve(approval *PendingApproval) {
	optionID := firstDenyLikeOption(approval.Options)
	c.replyPermission(approval, optionID)
}

func firstDenyLikeOption(options []wire.PermissionOption) string {
	for _, o := range options {
		if o.Kind.IsDenyLike() {
			return o.OptionID
		}
	}
	if len(options) > 0 {
		return options[0].OptionID
	}
	return ""
}

// ResolvePermission is called by the host to select an outcome for a
// pending approval. It replies to the original request and additionally
// sends a session/provide_permission notification with the same outcome,
// since some agents require the double signal.
func (c *Conversation) ResolvePermission(requestID, optionID string) error {
	c.mu.Lock()
	approval, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.replyPermission(approval, optionID)
}

func (c *Conversation) replyPermission(approval *PendingApproval, optionID string) error {
	outcome := newPermissionOutcome(optionID)

	resp, err := wire.NewResult(*approval.requestFrame.ID, outcome)
	if err == nil {
		if err := c.send(resp); err != nil {
			return err
		}
	}

	notifyParams := struct {
		SessionID string `json:"sessionId"`
		permissionOutcome
	}{SessionID: approval.sessionID, permissionOutcome: outcome}
	nf, err := wire.NewNotification(wire.MethodProvidePermission, notifyParams)
	if err != nil {
		return err
	}
	return c.send(nf)
}

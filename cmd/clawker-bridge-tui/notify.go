package main

import (
	"fmt"

	"github.com/schmitthub/clawker-bridge/internal/client"
)

// handleNotification renders one arrival-ordered Notification from C5
// into the transcript. Notifications already reflect the hidden-mode
// gating and replay-vs-live distinction; this
// client only needs to render what it's given.
func (m *model) handleNotification(n client.Notification) {
	switch n.Kind {
	case client.NotifyUserMessage:
		if n.User != nil {
			m.appendLine(styleUser.Render("you> ") + n.User.Text)
		}
	case client.NotifyAssistantDelta:
		// Deltas update the live transcript via NotifyAssistantFinal's
		// full render to keep this reference client simple; a richer
		// frontend would re-render in place instead.
	case client.NotifyAssistantFinal:
		if n.Assistant != nil {
			m.renderAssistant(n.Assistant)
		}
	case client.NotifyToolCall, client.NotifyToolCallUpdate:
		if n.ToolCall != nil {
			m.appendLine(styleTool.Render(fmt.Sprintf("tool %s [%s] %s", n.ToolCall.Name, n.ToolCall.Status, n.ToolCall.Title)))
		}
	case client.NotifyToolCallCompleted:
		if n.ToolCall != nil {
			m.appendLine(styleTool.Render(fmt.Sprintf("tool %s finished: %s", n.ToolCall.Name, n.ToolCall.Status)))
		}
	case client.NotifyPermissionRequest:
		m.approval = n.Approval
	case client.NotifyStructuredEvent:
		if n.Event != nil {
			if n.Event.Err != "" {
				m.appendLine(styleEvent.Render(fmt.Sprintf("event %s: error: %s (%s)", n.Event.Type, n.Event.Err, n.Event.Raw)))
			} else {
				m.appendLine(styleEvent.Render(fmt.Sprintf("event %s: %s", n.Event.Type, string(n.Event.Payload))))
			}
		}
	case client.NotifyAuthURL:
		m.appendLine(styleApproval.Render("authenticate at: " + n.AuthURL))
	case client.NotifyTurnCompleted:
		m.appendLine(styleStatus.Render("-- turn completed (" + n.Reason + ") --"))
	case client.NotifyError:
		m.appendLine(styleError.Render("error: " + n.Reason))
	}
}

func (m *model) renderAssistant(a *client.AssistantMessage) {
	for _, p := range a.Content {
		switch p.Kind {
		case client.PartText:
			if p.Text != "" {
				m.appendLine(styleAssistant.Render("assistant> ") + p.Text)
			}
		case client.PartThought:
			if p.Thought != "" {
				m.appendLine(styleThought.Render("(thinking) " + p.Thought))
			}
		case client.PartToolCall:
			// already rendered via NotifyToolCall/NotifyToolCallCompleted
		}
	}
}

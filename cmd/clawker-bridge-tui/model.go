package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schmitthub/clawker-bridge/internal/client"
	"github.com/schmitthub/clawker-bridge/internal/config"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// notifyMsg wraps a client.Notification for delivery onto the bubbletea
// event loop; Conversation's Sink runs off the connection's own reader
// goroutine, so it can't touch tea.Model state directly.
type notifyMsg client.Notification

type connErrMsg struct{ err error }

// model is the bubbletea root model: a scrolling transcript viewport, a
// prompt text input, and a pending-approval banner. Grounded on the
// teacher's internal/tui component style (a styles.go palette, a
// viewport-backed scrolling pane) adapted here to drive
// internal/client.Conversation instead of a Docker build/container
// dashboard.
type model struct {
	cfg *config.ClientConfig

	program *tea.Program
	conv    *client.Conversation

	viewport viewport.Model
	input    textinput.Model

	lines    []string
	approval *client.PendingApproval
	err      error
	ready    bool
}

var (
	styleUser      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	styleThought   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	styleTool      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleEvent     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleApproval  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	styleStatus    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newModel(cfg *config.ClientConfig) *model {
	ti := textinput.New()
	ti.Placeholder = "Type a prompt and press enter..."
	ti.Focus()
	ti.CharLimit = 4096

	vp := viewport.New(80, 20)

	return &model{
		cfg:   cfg,
		input: ti,
		lines: []string{styleStatus.Render("connecting to " + cfg.URL + "...")},
		viewport: vp,
	}
}

// connect builds the Conversation with a Sink that forwards every
// notification onto the bubbletea program's message loop, then dials.
func (m *model) connect() error {
	m.conv = client.New(client.Options{
		DiffContextLines: m.cfg.DiffContextLines,
		Sink: func(n client.Notification) {
			if m.program != nil {
				m.program.Send(notifyMsg(n))
			}
		},
	})
	conn, err := client.Dial(m.cfg, m.conv)
	if err != nil {
		return err
	}
	_ = conn
	return nil
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 3
		m.input.Width = msg.Width
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.approval != nil {
				return m, nil // approvals are resolved by number keys, see below
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			if _, err := m.conv.Prompt(text, wire.HiddenNone); err != nil {
				m.appendLine(styleError.Render("send failed: " + err.Error()))
			}
			return m, nil
		case "1", "2", "3", "4", "5":
			if m.approval != nil {
				m.resolveApprovalByIndex(int(msg.String()[0] - '1'))
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case notifyMsg:
		m.handleNotification(client.Notification(msg))
		return m, nil

	case connErrMsg:
		m.appendLine(styleError.Render("connection error: " + msg.err.Error()))
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	if !m.ready {
		return "initializing..."
	}
	var banner string
	if m.approval != nil {
		banner = styleApproval.Render(approvalBanner(m.approval)) + "\n"
	}
	return m.viewport.View() + "\n" + banner + m.input.View()
}

func (m *model) appendLine(s string) {
	m.lines = append(m.lines, s)
	m.refresh()
}

func (m *model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func approvalBanner(a *client.PendingApproval) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Approve %q?", a.ToolCall.Title)
	for i, opt := range a.Options {
		fmt.Fprintf(&b, " [%d]%s", i+1, opt.Label)
	}
	return b.String()
}

func (m *model) resolveApprovalByIndex(i int) {
	if m.approval == nil || i < 0 || i >= len(m.approval.Options) {
		return
	}
	opt := m.approval.Options[i]
	if err := m.conv.ResolvePermission(m.approval.RequestID, opt.OptionID); err != nil {
		m.appendLine(styleError.Render("approval failed: " + err.Error()))
	}
	m.approval = nil
}

// Command clawker-bridge-tui is a reference terminal client for
// clawker-bridge.
// It dials a bridge server, drives the C5 reconstructor
// (internal/client.Conversation), and renders the live conversation with
// bubbletea. It is intentionally minimal: a real frontend would add richer
// diff/markdown rendering, but the wiring to C5's notification API is the
// part this repo specifies.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/schmitthub/clawker-bridge/internal/config"
	"github.com/schmitthub/clawker-bridge/internal/logger"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clawker-bridge-tui",
		Short: "Terminal client for a clawker-bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML client config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("clawker-bridge-tui: stdin is not a terminal")
	}

	cfg, err := config.LoadClientConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.DiffContextLines < 0 {
		cfg.DiffContextLines = 0
	}

	if err := logger.Init(logger.Options{Console: false}); err != nil {
		return err
	}

	m := newModel(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p

	if err := m.connect(); err != nil {
		return err
	}

	_, err = p.Run()
	return err
}

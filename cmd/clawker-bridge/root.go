package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRootCmd builds the clawker-bridge command tree, mirroring the
// teacher's cmd/fawker root command shape (a bare parent with a version
// template and explicit subcommands, no top-level action of its own).
func newRootCmd(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "clawker-bridge",
		Short:        "Bridge a CLI agent subprocess over a multi-client JSON-RPC WebSocket",
		SilenceUsage: true,
		Version:      version,
	}
	cmd.SetVersionTemplate(fmt.Sprintf("clawker-bridge %s (commit: %s)\n", version, commit))

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDocsCmd())

	return cmd
}

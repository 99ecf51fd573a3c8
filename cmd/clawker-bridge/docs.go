package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// newDocsCmd generates reference documentation for the command tree by
// walking the root *cobra.Command and its subcommands with cobra/doc's
// format-specific generators.
func newDocsCmd() *cobra.Command {
	var (
		format string
		outDir string
	)

	cmd := &cobra.Command{
		Use:    "docs",
		Short:  "Generate clawker-bridge reference documentation",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch format {
			case "man":
				header := &doc.GenManHeader{
					Section: "1",
					Source:  "Clawker Bridge",
					Manual:  "Clawker Bridge Manual",
				}
				return doc.GenManTree(root, header, outDir)
			case "markdown", "md":
				return doc.GenMarkdownTree(root, outDir)
			case "rst":
				return doc.GenReSTTree(root, outDir)
			case "yaml", "yml":
				return doc.GenYamlTree(root, outDir)
			default:
				return fmt.Errorf("unknown doc format %q (want man|markdown|rst|yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: man|markdown|rst|yaml")
	cmd.Flags().StringVar(&outDir, "out", "./docs", "output directory")
	return cmd
}

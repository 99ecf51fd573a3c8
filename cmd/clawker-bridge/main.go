// Command clawker-bridge supervises a line-oriented CLI agent subprocess
// and fronts it with a multi-client JSON-RPC WebSocket bridge. It is
// the server half of the clawker-bridge project;
// see cmd/clawker-bridge-tui for a reference client.
//
//	go build -o bin/clawker-bridge ./cmd/clawker-bridge
//	CLAWKER_BRIDGE_LISTEN_ADDR=127.0.0.1:4444 ./bin/clawker-bridge serve
package main

import (
	"fmt"
	"os"
)

// version and commit are set at build time via -ldflags, following the
// teacher's cmd/fawker/cmd/clawker version-injection convention.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := newRootCmd(version, commit)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

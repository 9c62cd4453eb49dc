// anchorctl anchors agent memory snapshots and work products on chain from
// the command line. Configuration comes from the environment, matching the
// deployed service surface.
package main

import (
	"fmt"
	"os"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	app := newCLIApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "anchorctl:", err)
		os.Exit(1)
	}
}

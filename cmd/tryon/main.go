// tryon - command-line client for the fAIshion product feed, try-on history
// and styling assistant.
package main

import (
	"os"

	"github.com/faishion/tryon-client/internal/cli"
	"github.com/faishion/tryon-client/internal/version"
)

// Version information, injected via -ldflags at release builds.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

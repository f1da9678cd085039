package main

import (
	"fmt"
	"os"

	"github.com/bakeassist/bakeassist/internal/cli"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cli.SetBuildInfo(Version, BuildDate, GitCommit)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[bakeassist] %v\n", err)
		os.Exit(1)
	}
}

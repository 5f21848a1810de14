// CLI entry point for DealScope.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/turtacn/DealScope/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// DEALSCOPE_* settings may come from a .env next to the working directory.
	_ = godotenv.Load()

	// Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

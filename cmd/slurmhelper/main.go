package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fcmeyer/slurmhelper/internal/cmd"
	"github.com/fcmeyer/slurmhelper/internal/observability"
)

var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cmd.ExitWithCode(observability.CLILogger, cmd.ExitCode(err), "Command failed", err)
	}
}

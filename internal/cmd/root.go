// Package cmd implements the slurmhelper command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/config"
	"github.com/fcmeyer/slurmhelper/internal/observability"
)

// VersionInfo is stamped at build time.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	rootConfigFile string
	rootBase       string
	rootSpec       string
	rootDatabase   string
	rootLogLevel   string
	rootVerbose    bool

	// appConfig is the configuration of the running invocation.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "slurmhelper",
	Short: "Prepare SLURM submission scripts and check job outcomes",
	Long: `slurmhelper turns a table of jobs into SLURM submission scripts and, after
the jobs ran, infers from their logs which ones succeeded.

A working tree looks like:

  <base>/db.csv                 job database (order_id column required)
  <base>/spec.yaml              job spec (header, preamble, time model, ...)
  <base>/scripts/jobs/          per-job run scripts
  <base>/scripts/slurm/         submission scripts and registry
  <base>/logs/jobs/             per-job logs
  <base>/logs/slurm/            submission logs
  <base>/checks/                audit CSVs

Examples:
  slurmhelper gen-scripts --base /scratch/study
  slurmhelper prep-array --sbatch-id 3 --range 1-500 --rate-limit 20
  slurmhelper check completed --range 1-500`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initInvocation,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootConfigFile, "config", "", "Config file (default: <user config dir>/slurmhelper/config.yaml)")
	pf.StringVarP(&rootBase, "base", "b", "", "Base directory of the working tree")
	pf.StringVar(&rootSpec, "spec", "", "Job spec file (default: <base>/spec.yaml)")
	pf.StringVar(&rootDatabase, "database", "", "Job database, CSV or SQLite (default: <base>/db.csv)")
	pf.StringVar(&rootLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.BoolVarP(&rootVerbose, "verbose", "v", false, "Verbose logging (same as --log-level debug)")
}

// flagOverrides collects explicitly set root flags as config overrides.
func flagOverrides(cmd *cobra.Command) map[string]any {
	paths := map[string]any{}
	logging := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("base") {
		paths["base"] = rootBase
	}
	if flags.Changed("spec") {
		paths["spec"] = rootSpec
	}
	if flags.Changed("database") {
		paths["database"] = rootDatabase
	}
	if flags.Changed("log-level") {
		logging["level"] = rootLogLevel
	}
	if rootVerbose {
		logging["level"] = "debug"
	}

	out := map[string]any{}
	if len(paths) > 0 {
		out["paths"] = paths
	}
	if len(logging) > 0 {
		out["logging"] = logging
	}
	return out
}

func initInvocation(cmd *cobra.Command, args []string) error {
	config.SetConfigFile(rootConfigFile)

	cfg, err := config.Load(cmd.Context(), flagOverrides(cmd))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	appConfig = cfg

	if err := observability.InitLogger(observability.Options{
		Service: config.AppName,
		Level:   cfg.Logging.Level,
		Profile: cfg.Logging.Profile,
	}); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	observability.CLILogger.Debug("Configuration loaded",
		zap.String("base", cfg.Paths.Base),
		zap.String("command", cmd.CommandPath()))
	return nil
}

// ExecuteContext runs the root command with ctx, normally cancelled on SIGINT.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ExitCodeError carries the process exit code for a failed command.
type ExitCodeError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitCodeError{Code: code, Message: message, Err: err}
}

// ExitCode returns the exit code carried by err, or 1.
func ExitCode(err error) int {
	var ec *ExitCodeError
	if errors.As(err, &ec) {
		return ec.Code
	}
	return 1
}

// ExitWithCode logs err and terminates the process with code.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	if logger != nil {
		logger.Error(message, zap.Error(err), zap.Int("exit_code", code))
		_ = logger.Sync()
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(code)
}

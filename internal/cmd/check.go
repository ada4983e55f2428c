package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/inference"
	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
	"github.com/fcmeyer/slurmhelper/pkg/output"
	"github.com/fcmeyer/slurmhelper/pkg/submissions"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Inspect job outcomes and logs",
	Long: `Inspect what happened after submission.

Subcommands:
  completed  which jobs succeeded, failed, or left no log
  runtimes   runtime statistics of succeeded jobs
  runs       output validation of succeeded jobs
  log        print one job log
  sbatch     print one submission log`,
}

var checkCompletedCmd = &cobra.Command{
	Use:   "completed",
	Short: "Report which jobs completed successfully",
	Long: `Read logs/jobs/<job_id>.txt for every selected job and classify it:
no log, failed (log without the success marker), or succeeded. Prints counts
and percentages, lists the no-log and failed ids, and writes an audit CSV to
checks/check_<timestamp>.csv.

Examples:
  slurmhelper check completed
  slurmhelper check completed --range 1-500 --show-failed-logs
  slurmhelper check completed --json > outcomes.jsonl`,
	Args: cobra.NoArgs,
	RunE: runCheckCompleted,
}

const failedLogsTip = "Tip: rerun with --show-failed-logs to print the full log of each failed job"

var (
	checkIDs            string
	checkRange          string
	checkJSON           bool
	checkShowFailedLogs bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.AddCommand(checkCompletedCmd)

	addSelectionFlags(checkCompletedCmd, &checkIDs, &checkRange)
	checkCompletedCmd.Flags().BoolVar(&checkJSON, "json", false, "Emit JSONL outcome and summary records")
	checkCompletedCmd.Flags().BoolVar(&checkShowFailedLogs, "show-failed-logs", false, "Print the full log of each failed job")
}

// inferSelection loads the workspace and infers outcomes for the selected jobs.
func inferSelection(ctx context.Context, ids, rng string) (*workspace, []jobdb.Descriptor, []inference.Outcome, error) {
	sel, err := parseSelection(ids, rng)
	if err != nil {
		return nil, nil, nil, err
	}
	ws, err := openWorkspace()
	if err != nil {
		return nil, nil, nil, err
	}
	jobs, err := ws.jobs(ctx, sel)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := currentConfig()
	if cfg.Check.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Check.Timeout)
		defer cancel()
	}

	conv := ws.spec.Conventions()
	engine := inference.New(ws.dirs.JobLog, inference.NewSentinelParser(conv), conv.Noise, inference.Config{
		Concurrency:   cfg.Check.Concurrency,
		ReadRateLimit: cfg.Check.ReadRateLimit,
	})

	start := time.Now()
	outcomes, err := engine.Infer(ctx, jobs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, nil, exitError(foundry.ExitExternalServiceUnavailable, "Log inference timed out", err)
		}
		return nil, nil, nil, exitError(foundry.ExitSignalInt, "Log inference cancelled", err)
	}
	for _, o := range outcomes {
		if o.ReadError != "" {
			observability.CLILogger.Warn("Job log unreadable", zap.String("job_id", o.JobID), zap.String("error", o.ReadError))
		}
	}
	observability.CLILogger.Debug("Logs inferred",
		zap.Int("jobs", len(outcomes)),
		zap.Duration("elapsed", time.Since(start)))
	return ws, jobs, outcomes, nil
}

func writeAuditFile(ws *workspace, outcomes []inference.Outcome) (string, error) {
	path, err := inference.WriteAudit(ws.dirs.Checks, time.Now(), outcomes)
	if err != nil {
		return "", exitError(foundry.ExitFileWriteError, "Failed to write audit file", err)
	}
	observability.CLILogger.Info("Audit file written", zap.String("path", path))
	return path, nil
}

// writeOutcomesJSONL streams every outcome followed by the summary.
func writeOutcomesJSONL(ctx context.Context, command string, outcomes []inference.Outcome, s inference.Summary, auditPath string) error {
	w := output.NewJSONLWriter(os.Stdout, submissions.NewRunID(), command)
	defer func() { _ = w.Close() }()
	for _, o := range outcomes {
		if err := w.WriteOutcome(ctx, output.NewOutcomeRecord(o)); err != nil {
			return err
		}
		if o.ReadError != "" {
			if err := w.WriteError(ctx, &output.ErrorRecord{
				Code:    output.ErrCodeLogUnreadable,
				Message: o.ReadError,
				JobID:   o.JobID,
			}); err != nil {
				return err
			}
		}
	}
	return w.WriteSummary(ctx, output.NewSummaryRecord(s, auditPath))
}

func runCheckCompleted(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, _, outcomes, err := inferSelection(ctx, checkIDs, checkRange)
	if err != nil {
		return err
	}
	s := inference.Summarize(outcomes)

	auditPath, err := writeAuditFile(ws, outcomes)
	if err != nil {
		return err
	}

	if checkJSON {
		return writeOutcomesJSONL(ctx, "check completed", outcomes, s, auditPath)
	}

	if err := inference.WriteCompletedReport(os.Stdout, s); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Nothing to report", err)
	}
	if checkShowFailedLogs {
		noise := ws.spec.Log.Noise
		for _, o := range outcomes {
			if !o.Failed() {
				continue
			}
			lines, err := inference.ReadLogFile(o.LogPath, "job", noise)
			if err != nil {
				observability.CLILogger.Warn("Cannot show failed log", zap.String("job_id", o.JobID), zap.Error(err))
				continue
			}
			fmt.Println()
			inference.PrettyPrintLog(os.Stdout, o.LogPath, lines, inference.LogView{Title: "Job unit log file", Full: true})
		}
	} else if s.Failed > 0 {
		fmt.Printf("\n%s\n", failedLogsTip)
	}
	fmt.Printf("\naudit file: %s\n", auditPath)
	return nil
}

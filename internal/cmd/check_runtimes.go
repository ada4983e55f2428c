package cmd

import (
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/errs"
	"github.com/fcmeyer/slurmhelper/pkg/inference"
	"github.com/fcmeyer/slurmhelper/pkg/output"
	"github.com/fcmeyer/slurmhelper/pkg/submissions"
)

var checkRuntimesCmd = &cobra.Command{
	Use:   "runtimes",
	Short: "Summarize runtimes of succeeded jobs",
	Long: `Describe the runtime distribution (count, mean, std, min, percentiles, max)
of the selected jobs that succeeded and logged a runtime. Useful for tuning
job_time in the job spec. Like check completed, writes an audit CSV to
checks/check_<timestamp>.csv.

Examples:
  slurmhelper check runtimes
  slurmhelper check runtimes --range 1-100 --json`,
	Args: cobra.NoArgs,
	RunE: runCheckRuntimes,
}

var (
	runtimesIDs   string
	runtimesRange string
	runtimesJSON  bool
)

func init() {
	checkCmd.AddCommand(checkRuntimesCmd)
	addSelectionFlags(checkRuntimesCmd, &runtimesIDs, &runtimesRange)
	checkRuntimesCmd.Flags().BoolVar(&runtimesJSON, "json", false, "Emit a JSONL runtime statistics record")
}

func runCheckRuntimes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, _, outcomes, err := inferSelection(ctx, runtimesIDs, runtimesRange)
	if err != nil {
		return err
	}
	auditPath, err := writeAuditFile(ws, outcomes)
	if err != nil {
		return err
	}

	st, err := inference.ComputeRuntimeStats(outcomes)
	if err != nil {
		if errs.IsNoData(err) {
			observability.CLILogger.Warn("No succeeded jobs with a logged runtime",
				zap.Int("jobs", len(outcomes)))
			return exitError(foundry.ExitInvalidArgument, "No runtime data", err)
		}
		return err
	}

	if runtimesJSON {
		w := output.NewJSONLWriter(os.Stdout, submissions.NewRunID(), "check runtimes")
		defer func() { _ = w.Close() }()
		rec := output.NewRuntimeStatsRecord(st)
		rec.AuditPath = auditPath
		return w.WriteRuntimeStats(ctx, rec)
	}

	fmt.Println(inference.Banner("slurmhelper check runtimes", '~'))
	inference.WriteRuntimeStats(os.Stdout, st)
	fmt.Printf("\naudit file: %s\n", auditPath)
	return nil
}

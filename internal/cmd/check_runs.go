package cmd

import (
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/fcmeyer/slurmhelper/pkg/inference"
	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
)

var checkRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Validate that succeeded jobs produced output",
	Long: `A job is valid when its log indicates success and its output glob matches at
least one file. The glob is output_path/output_path_subject.../
output_path_subject_expr from the job spec's output section, each resolved against
the job record. Every job whose flag is false is listed as invalid.

Examples:
  slurmhelper check runs
  slurmhelper check runs --range 1-200`,
	Args: cobra.NoArgs,
	RunE: runCheckRuns,
}

var (
	runsIDs   string
	runsRange string
	runsJSON  bool
)

func init() {
	checkCmd.AddCommand(checkRunsCmd)
	addSelectionFlags(checkRunsCmd, &runsIDs, &runsRange)
	checkRunsCmd.Flags().BoolVar(&runsJSON, "json", false, "Emit JSONL outcome and summary records")
}

func runCheckRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, jobs, outcomes, err := inferSelection(ctx, runsIDs, runsRange)
	if err != nil {
		return err
	}
	out := ws.spec.Output
	if !out.Enabled() {
		return exitError(foundry.ExitInvalidArgument, "Output validation is not configured",
			fmt.Errorf("set output.output_path_subject_expr in %s", ws.specPath))
	}

	v, err := inference.NewOutputValidator(inference.OutputRule{
		Root:    out.OutputPath,
		Subject: out.OutputPathSubject,
		Expr:    out.OutputPathSubjectExpr,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid output section", err)
	}
	if err := v.Apply(jobs, outcomes); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Output validation failed", err)
	}

	auditPath, err := writeAuditFile(ws, outcomes)
	if err != nil {
		return err
	}
	if runsJSON {
		return writeOutcomesJSONL(ctx, "check runs", outcomes, inference.Summarize(outcomes), auditPath)
	}

	valid, invalid := inference.PartitionValidity(outcomes)
	fmt.Println(inference.Banner("slurmhelper check runs: results", '~'))
	fmt.Printf("jobs considered: %d\n", len(outcomes))
	fmt.Printf("valid runs: %d\n", len(valid))
	fmt.Printf("invalid runs: %d\n", len(invalid))
	if len(valid) > 0 {
		fmt.Printf("\nvalid (n = %d):\n", len(valid))
		inference.WriteJobIDGrid(os.Stdout, formatJobIDs(valid), 5)
	}
	if len(invalid) > 0 {
		fmt.Printf("\ninvalid (n = %d):\n", len(invalid))
		inference.WriteJobIDGrid(os.Stdout, formatJobIDs(invalid), 5)
	}
	fmt.Printf("\naudit file: %s\n", auditPath)
	return nil
}

func formatJobIDs(orderIDs []int64) []string {
	out := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		out[i] = jobdb.FormatJobID(id)
	}
	return out
}

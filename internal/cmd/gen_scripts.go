package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/script"
)

var genScriptsCmd = &cobra.Command{
	Use:   "gen-scripts",
	Short: "Render per-job run scripts",
	Long: `Render scripts/jobs/<job_id>_run.sh for each selected job from the job spec's
run_script template. {field} placeholders resolve against the job's database
row, the script_global_settings, and the derived order_id, job_id and run_id.

Examples:
  slurmhelper gen-scripts
  slurmhelper gen-scripts --range 1-50
  slurmhelper gen-scripts --ids 7 --dry`,
	Args: cobra.NoArgs,
	RunE: runGenScripts,
}

var (
	genScriptsIDs   string
	genScriptsRange string
	genScriptsDry   bool
)

func init() {
	rootCmd.AddCommand(genScriptsCmd)
	addSelectionFlags(genScriptsCmd, &genScriptsIDs, &genScriptsRange)
	genScriptsCmd.Flags().BoolVar(&genScriptsDry, "dry", false, "Print scripts instead of writing them")
}

func runGenScripts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sel, err := parseSelection(genScriptsIDs, genScriptsRange)
	if err != nil {
		return err
	}
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	rs, err := script.NewRunScripts(ws.spec.RunScript)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid run_script", err)
	}
	jobs, err := ws.jobs(ctx, sel)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if missing := rs.Missing(job); len(missing) > 0 {
			return exitError(foundry.ExitInvalidArgument, "run_script references unknown fields",
				fmt.Errorf("job %s lacks %s", job.JobID, strings.Join(missing, ", ")))
		}
	}

	writer := script.NewWriter(ws.dirs.JobScripts)
	written := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return exitError(foundry.ExitSignalInt, "gen-scripts cancelled", err)
		}
		text, err := rs.Render(job)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to render run script", err)
		}
		if genScriptsDry {
			fmt.Printf("# ---- %s_run.sh ----\n%s\n", job.JobID, text)
			continue
		}
		path, err := writer.Write(job.JobID+"_run", text)
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write run script", err)
		}
		observability.CLILogger.Debug("Run script written", zap.String("path", path))
		written++
	}

	if !genScriptsDry {
		observability.CLILogger.Info("Run scripts generated",
			zap.Int("jobs", written),
			zap.String("dir", writer.Dir()))
		fmt.Printf("wrote %d run scripts to %s\n", written, writer.Dir())
	}
	return nil
}

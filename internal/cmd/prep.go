package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/script"
	"github.com/fcmeyer/slurmhelper/pkg/submissions"
	"github.com/fcmeyer/slurmhelper/pkg/walltime"
)

var prepCmd = &cobra.Command{
	Use:   "prep",
	Short: "Prepare a serial submission script",
	Long: `Prepare one submission script that runs the selected jobs one after the
other, teeing each job's output into logs/jobs/<job_id>.txt.

The wall time is the time model estimate (ramp-up + jobs x job time) unless
--time is given. When the estimate exceeds max_job_time a warning is logged;
use prep-array to split the work instead.

Examples:
  slurmhelper prep --sbatch-id 1 --range 1-20
  slurmhelper prep --sbatch-id 2 --ids 4,9,16 --time 6h --memory 8G
  slurmhelper prep --sbatch-id 3 --range 1-5 --dry`,
	Args: cobra.NoArgs,
	RunE: runPrep,
}

var (
	prepFlags    submitFlags
	prepNoHeader bool
)

func init() {
	rootCmd.AddCommand(prepCmd)
	prepFlags.register(prepCmd)
	prepCmd.Flags().BoolVar(&prepNoHeader, "no-header", false, "Omit the sbatch resource request header")
}

func runPrep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := prepFlags.validate(); err != nil {
		return err
	}
	sel, err := parseSelection(prepFlags.ids, prepFlags.rng)
	if err != nil {
		return err
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	model := ws.spec.Model()
	if err := model.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid time model", err)
	}
	jobs, err := ws.jobs(ctx, sel)
	if err != nil {
		return err
	}
	ids := jobIDs(jobs)

	estimate, err := model.Estimate(len(ids))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid time model", err)
	}
	wall, manual := prepFlags.wallTime(estimate)
	if !manual && estimate > model.MaxPartition {
		observability.CLILogger.Warn("Estimated wall time exceeds max_job_time; consider prep-array",
			zap.String("estimate", walltime.Format(estimate)),
			zap.String("max_job_time", walltime.Format(model.MaxPartition)),
			zap.Int("jobs", len(ids)))
	}

	writer := script.NewWriter(ws.dirs.SlurmScripts)
	store := submissions.NewStore(ws.dirs.SlurmScripts)
	if !prepFlags.dry {
		if err := checkFresh(writer, store, prepFlags.sbatchID, prepFlags.force); err != nil {
			return err
		}
		if err := ws.dirs.Ensure(); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to create working tree", err)
		}
	}

	name := script.Name(prepFlags.sbatchID)
	synth := script.New(ws.spec.Templates())
	text := synth.Wrapper(script.WrapperRequest{
		JobName:   name,
		LogPath:   ws.dirs.SlurmLog(name),
		Resources: prepFlags.resources(wall),
		Jobs:      script.JobsFor(ws.dirs, ids),
		NoHeader:  prepNoHeader,
	})

	rec := &submissions.Record{
		SbatchID:   prepFlags.sbatchID,
		Name:       name,
		Kind:       submissions.KindSerial,
		ScriptPath: writer.Path(name),
		SpecPath:   ws.specPath,
		JobIDs:     ids,
		WallTime:   walltime.Format(wall),
		NTasks:     prepFlags.nTasks,
		Memory:     prepFlags.memory,
		ManualTime: manual,
	}
	return emitSubmission(ctx, "prep", &prepFlags, writer, store, rec, []renderedScript{{name: name, text: text}})
}

package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/parcel"
	"github.com/fcmeyer/slurmhelper/pkg/script"
	"github.com/fcmeyer/slurmhelper/pkg/submissions"
	"github.com/fcmeyer/slurmhelper/pkg/walltime"
)

var prepArrayCmd = &cobra.Command{
	Use:   "prep-array",
	Short: "Prepare an array submission",
	Long: `Prepare an array submission: the selected jobs are split into parcels,
each parcel gets its own wrapper script (sb-XXXX-<index>.sh, indices start at
100), and a dispatcher script (sb-XXXX.sh) requests one array element per
parcel.

The parcel count defaults to the smallest count that keeps every parcel within
max_job_time; the dispatcher asks for the longest parcel estimate unless
--time is given.

Examples:
  slurmhelper prep-array --sbatch-id 4 --range 1-500
  slurmhelper prep-array --sbatch-id 5 --range 1-500 --n-parcels 20 --rate-limit 5
  slurmhelper prep-array --sbatch-id 6 --ids 3,7,11 --dry`,
	Args: cobra.NoArgs,
	RunE: runPrepArray,
}

var (
	prepArrayFlags     submitFlags
	prepArrayNParcels  int
	prepArrayRateLimit int
)

func init() {
	rootCmd.AddCommand(prepArrayCmd)
	prepArrayFlags.register(prepArrayCmd)
	prepArrayCmd.Flags().IntVar(&prepArrayNParcels, "n-parcels", 0, "Number of parcels (0 = minimum allowed by max_job_time)")
	prepArrayCmd.Flags().IntVar(&prepArrayRateLimit, "rate-limit", 0, "Max concurrently running array elements (0 = unlimited)")
}

func runPrepArray(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := prepArrayFlags.validate(); err != nil {
		return err
	}
	if prepArrayNParcels < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --n-parcels", fmt.Errorf("--n-parcels must not be negative"))
	}
	if prepArrayRateLimit < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --rate-limit", fmt.Errorf("--rate-limit must not be negative"))
	}
	sel, err := parseSelection(prepArrayFlags.ids, prepArrayFlags.rng)
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

	plan, err := script.PlanArray(model, ids, prepArrayNParcels)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to partition jobs", err)
	}
	wall, manual := prepArrayFlags.wallTime(plan.WallTime)
	observability.CLILogger.Debug("Array planned",
		zap.Int("jobs", len(ids)),
		zap.Ints("parcel_sizes", plan.Sizes),
		zap.String("estimate", walltime.Format(plan.WallTime)),
		zap.Bool("manual_time", manual))

	writer := script.NewWriter(ws.dirs.SlurmScripts)
	store := submissions.NewStore(ws.dirs.SlurmScripts)
	if !prepArrayFlags.dry {
		if err := checkFresh(writer, store, prepArrayFlags.sbatchID, prepArrayFlags.force); err != nil {
			return err
		}
		if err := ws.dirs.Ensure(); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to create working tree", err)
		}
	}

	id := prepArrayFlags.sbatchID
	name := script.Name(id)
	synth := script.New(ws.spec.Templates())

	scripts := make([]renderedScript, 0, len(plan.Parcels)+1)
	for i, p := range plan.Parcels {
		element := script.ElementName(id, parcel.ArrayIndex(i))
		scripts = append(scripts, renderedScript{
			name: element,
			text: synth.Wrapper(script.WrapperRequest{
				JobName:  element,
				Jobs:     script.JobsFor(ws.dirs, p),
				NoHeader: true,
			}),
		})
	}

	dispatcher, err := synth.Dispatcher(script.DispatcherRequest{
		JobName:     name,
		LogPattern:  script.ElementLogPattern(ws.dirs.SlurmLogs, id),
		Resources:   prepArrayFlags.resources(wall),
		NParcels:    len(plan.Parcels),
		RateLimit:   prepArrayRateLimit,
		WrapperPath: script.ElementWrapperPath(ws.dirs.SlurmScripts, id),
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to render dispatcher", err)
	}
	// Elements first so the dispatcher never points at missing wrappers.
	scripts = append(scripts, renderedScript{name: name, text: dispatcher})

	rec := &submissions.Record{
		SbatchID:   id,
		Name:       name,
		Kind:       submissions.KindArray,
		ScriptPath: writer.Path(name),
		SpecPath:   ws.specPath,
		JobIDs:     ids,
		Parcels:    plan.Parcels,
		WallTime:   walltime.Format(wall),
		NTasks:     prepArrayFlags.nTasks,
		Memory:     prepArrayFlags.memory,
		RateLimit:  prepArrayRateLimit,
		ManualTime: manual,
	}
	return emitSubmission(ctx, "prep-array", &prepArrayFlags, writer, store, rec, scripts)
}

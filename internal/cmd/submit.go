package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/output"
	"github.com/fcmeyer/slurmhelper/pkg/script"
	"github.com/fcmeyer/slurmhelper/pkg/submissions"
	"github.com/fcmeyer/slurmhelper/pkg/walltime"
)

// submitFlags is the flag surface shared by prep and prep-array.
type submitFlags struct {
	sbatchID int
	ids      string
	rng      string
	time     time.Duration
	nTasks   int
	memory   string
	dry      bool
	force    bool
	json     bool
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.sbatchID, "sbatch-id", -1, "Submission id, rendered as sb-XXXX (required)")
	addSelectionFlags(cmd, &f.ids, &f.rng)
	cmd.Flags().DurationVar(&f.time, "time", 0, "Wall time override, e.g. 12h or 90m (default: time model estimate)")
	cmd.Flags().IntVar(&f.nTasks, "n-tasks", 1, "Tasks requested per submission")
	cmd.Flags().StringVar(&f.memory, "memory", "4G", "Memory requested per submission")
	cmd.Flags().BoolVar(&f.dry, "dry", false, "Print scripts instead of writing them")
	cmd.Flags().BoolVar(&f.force, "force", false, "Overwrite an existing submission with the same id")
	cmd.Flags().BoolVar(&f.json, "json", false, "Emit a JSONL submission record instead of text")
}

func (f *submitFlags) validate() error {
	if f.sbatchID < 0 {
		return exitError(foundry.ExitInvalidArgument, "Missing --sbatch-id", fmt.Errorf("--sbatch-id must be a non-negative integer"))
	}
	if f.sbatchID > 9999 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --sbatch-id", fmt.Errorf("--sbatch-id %d does not fit sb-XXXX", f.sbatchID))
	}
	if f.nTasks < 1 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --n-tasks", fmt.Errorf("--n-tasks must be at least 1"))
	}
	if f.time < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --time", fmt.Errorf("--time must not be negative"))
	}
	return nil
}

// wallTime returns the manual --time when set, otherwise estimate.
func (f *submitFlags) wallTime(estimate time.Duration) (time.Duration, bool) {
	if f.time > 0 {
		return f.time, true
	}
	return estimate, false
}

func (f *submitFlags) resources(wall time.Duration) script.Resources {
	return script.Resources{NTasks: f.nTasks, Memory: f.memory, Time: walltime.Format(wall)}
}

// checkFresh refuses to overwrite a prepared submission unless --force.
func checkFresh(w *script.Writer, store *submissions.Store, sbatchID int, force bool) error {
	if force {
		return nil
	}
	name := script.Name(sbatchID)
	if _, err := os.Stat(w.Path(name)); err == nil || store.Exists(sbatchID) {
		return exitError(foundry.ExitInvalidArgument, "Submission already prepared",
			fmt.Errorf("%s exists in %s; use --force or another --sbatch-id", name, w.Dir()))
	}
	return nil
}

// renderedScript is one script of a submission, in write order.
type renderedScript struct {
	name string
	text string
}

// emitSubmission writes (or, for dry runs, prints) the scripts of a
// submission and records it in the registry.
func emitSubmission(ctx context.Context, cmdName string, f *submitFlags, w *script.Writer, store *submissions.Store, rec *submissions.Record, scripts []renderedScript) error {
	if f.dry {
		if !f.json {
			for _, s := range scripts {
				fmt.Printf("# ---- %s.sh ----\n%s\n\n", s.name, s.text)
			}
		}
		return reportSubmission(ctx, cmdName, f, rec, true)
	}

	for _, s := range scripts {
		path, err := w.Write(s.name, s.text)
		if err != nil {
			observability.CLILogger.Error("Failed to write script", zap.String("name", s.name), zap.Error(err))
			return exitError(foundry.ExitFileWriteError, "Failed to write script", err)
		}
		observability.CLILogger.Debug("Script written", zap.String("path", path))
	}

	rec.CreatedAt = time.Now().UTC()
	if err := store.Write(rec); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to record submission", err)
	}
	observability.CLILogger.Info("Submission prepared",
		zap.String("name", rec.Name),
		zap.String("kind", string(rec.Kind)),
		zap.Int("jobs", len(rec.JobIDs)),
		zap.String("wall_time", rec.WallTime),
		zap.String("run_id", rec.RunID))
	return reportSubmission(ctx, cmdName, f, rec, false)
}

func reportSubmission(ctx context.Context, cmdName string, f *submitFlags, rec *submissions.Record, dry bool) error {
	if f.json {
		runID := rec.RunID
		if runID == "" {
			runID = submissions.NewRunID()
		}
		w := output.NewJSONLWriter(os.Stdout, runID, cmdName)
		defer func() { _ = w.Close() }()
		return w.WriteSubmission(ctx, &output.SubmissionRecord{
			SbatchID:   rec.SbatchID,
			Name:       rec.Name,
			Kind:       string(rec.Kind),
			ScriptPath: rec.ScriptPath,
			WallTime:   rec.WallTime,
			Jobs:       len(rec.JobIDs),
			Parcels:    len(rec.Parcels),
			DryRun:     dry,
		})
	}
	if !dry {
		fmt.Printf("sbatch %s\n", rec.ScriptPath)
	}
	return nil
}

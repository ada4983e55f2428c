package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/errs"
	"github.com/fcmeyer/slurmhelper/pkg/inference"
	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
	"github.com/fcmeyer/slurmhelper/pkg/script"
)

var checkLogCmd = &cobra.Command{
	Use:   "log <order-id>",
	Short: "Print one job log",
	Long: `Print logs/jobs/<job_id>.txt for one job: the first and last lines by
default, everything with --full.

Examples:
  slurmhelper check log 17
  slurmhelper check log 17 --full
  slurmhelper check log 17 --head 20 --tail 40`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckLog,
}

var checkSbatchCmd = &cobra.Command{
	Use:   "sbatch <sbatch-id>",
	Short: "Print one submission log",
	Long: `Print logs/slurm/sb-XXXX.txt for a serial submission. For array
submissions the per-element logs sb-XXXX-<index>.txt are counted and, with
--elements, printed as well.

Examples:
  slurmhelper check sbatch 3
  slurmhelper check sbatch 4 --elements --tail 10`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckSbatch,
}

var (
	logViewHead    int
	logViewTail    int
	logViewFull    bool
	sbatchElements bool
	sbatchViewHead int
	sbatchViewTail int
	sbatchViewFull bool
)

func init() {
	checkCmd.AddCommand(checkLogCmd)
	checkCmd.AddCommand(checkSbatchCmd)

	checkLogCmd.Flags().IntVar(&logViewHead, "head", 5, "Leading lines to show")
	checkLogCmd.Flags().IntVar(&logViewTail, "tail", 5, "Trailing lines to show")
	checkLogCmd.Flags().BoolVar(&logViewFull, "full", false, "Show the whole log")

	checkSbatchCmd.Flags().IntVar(&sbatchViewHead, "head", 5, "Leading lines to show")
	checkSbatchCmd.Flags().IntVar(&sbatchViewTail, "tail", 5, "Trailing lines to show")
	checkSbatchCmd.Flags().BoolVar(&sbatchViewFull, "full", false, "Show the whole log")
	checkSbatchCmd.Flags().BoolVar(&sbatchElements, "elements", false, "Also print array element logs")
}

func logView(title string, head, tail int, full bool) (inference.LogView, error) {
	if head < 0 || tail < 0 {
		return inference.LogView{}, exitError(foundry.ExitInvalidArgument, "Invalid log view", fmt.Errorf("--head and --tail must not be negative"))
	}
	return inference.LogView{Title: title, Head: head, Tail: tail, Full: full}, nil
}

func parseIDArg(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return 0, exitError(foundry.ExitInvalidArgument, "Invalid "+what, fmt.Errorf("%q is not a non-negative integer", arg))
	}
	return id, nil
}

// printLog reads and prints one log; a missing log is an error.
func printLog(path, kind string, noise []string, view inference.LogView) error {
	lines, err := inference.ReadLogFile(path, kind, noise)
	if err != nil {
		if errs.IsMissingLog(err) {
			return exitError(foundry.ExitFileNotFound, "Log not found", err)
		}
		return exitError(foundry.ExitFileReadError, "Failed to read log", err)
	}
	inference.PrettyPrintLog(os.Stdout, path, lines, view)
	return nil
}

func runCheckLog(cmd *cobra.Command, args []string) error {
	orderID, err := parseIDArg(args[0], "order id")
	if err != nil {
		return err
	}
	view, err := logView("Job unit log file", logViewHead, logViewTail, logViewFull)
	if err != nil {
		return err
	}
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	return printLog(ws.dirs.JobLog(jobdb.FormatJobID(orderID)), "job", ws.spec.Log.Noise, view)
}

func runCheckSbatch(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0], "sbatch id")
	if err != nil {
		return err
	}
	view, err := logView("Submission log file", sbatchViewHead, sbatchViewTail, sbatchViewFull)
	if err != nil {
		return err
	}
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	sbatchID := int(id)
	name := script.Name(sbatchID)
	elements, err := script.ElementLogs(ws.dirs.SlurmLogs, sbatchID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list array element logs", err)
	}

	mainLog := ws.dirs.SlurmLog(name)
	_, statErr := os.Stat(mainLog)
	if statErr != nil && len(elements) == 0 {
		return exitError(foundry.ExitFileNotFound, "Log not found", &errs.MissingLogError{Kind: "sbatch", Path: mainLog})
	}
	if statErr == nil {
		if err := printLog(mainLog, "sbatch", ws.spec.Log.Noise, view); err != nil {
			return err
		}
	}

	if len(elements) > 0 {
		fmt.Printf("\narray element logs for %s: %d\n", name, len(elements))
		for _, p := range elements {
			if !sbatchElements {
				fmt.Printf("  %s\n", filepath.Base(p))
				continue
			}
			fmt.Println()
			if err := printLog(p, "sbatch", ws.spec.Log.Noise, view); err != nil {
				observability.CLILogger.Warn("Cannot print element log", zap.String("path", p), zap.Error(err))
			}
		}
	}
	return nil
}

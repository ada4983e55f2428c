package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/config"
	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/errs"
	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
	"github.com/fcmeyer/slurmhelper/pkg/jobspec"
	"github.com/fcmeyer/slurmhelper/pkg/layout"
)

// workspace is the resolved working tree of one invocation.
type workspace struct {
	dirs     layout.Dirs
	spec     *jobspec.Spec
	specPath string
	dbPath   string
}

func currentConfig() *config.Config {
	if appConfig != nil {
		return appConfig
	}
	if cfg := config.GetConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Paths: config.PathsConfig{Base: "."},
		Check: config.CheckConfig{Concurrency: 8},
	}
}

// openWorkspace resolves the layout and loads the job spec.
func openWorkspace() (*workspace, error) {
	cfg := currentConfig()
	dirs, err := layout.FromBase(cfg.Paths.Base)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid base directory", err)
	}
	if info, err := os.Stat(dirs.Base); err != nil || !info.IsDir() {
		return nil, exitError(foundry.ExitFileNotFound, "Base directory not found", fmt.Errorf("%s is not a directory", dirs.Base))
	}

	ws := &workspace{
		dirs:     dirs,
		specPath: cfg.SpecPath(dirs.Base),
		dbPath:   cfg.DatabasePath(dirs.Database()),
	}
	if _, err := os.Stat(ws.specPath); err != nil {
		return nil, exitError(foundry.ExitFileNotFound, "Job spec not found", err)
	}
	spec, err := jobspec.Load(ws.specPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load job spec", zap.String("path", ws.specPath), zap.Error(err))
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid job spec", err)
	}
	ws.spec = spec
	observability.CLILogger.Debug("Workspace opened",
		zap.String("base", dirs.Base),
		zap.String("spec", ws.specPath),
		zap.String("database", ws.dbPath))
	return ws, nil
}

// jobs loads the database and builds the selected job descriptors.
func (ws *workspace) jobs(ctx context.Context, sel []int64) ([]jobdb.Descriptor, error) {
	if _, err := os.Stat(ws.dbPath); err != nil {
		return nil, exitError(foundry.ExitFileNotFound, "Job database not found", err)
	}
	table, err := jobdb.Open(ws.dbPath, jobdb.DefaultTable).Load(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to load job database", zap.String("path", ws.dbPath), zap.Error(err))
		return nil, exitError(foundry.ExitFileReadError, "Failed to read job database", err)
	}

	jobs, err := jobdb.Build(table, ws.spec.ScriptGlobalSettings, jobdb.BuildOptions{Select: sel})
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Failed to build job records", err)
	}
	if missing := jobdb.MissingIDs(sel, jobs); len(missing) > 0 {
		observability.CLILogger.Warn("Selected ids not present in the job database",
			zap.Int64s("order_ids", missing))
	}
	return jobs, nil
}

// globals returns the script global settings as template values.
func jobIDs(jobs []jobdb.Descriptor) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.JobID
	}
	return out
}

// addSelectionFlags registers --ids and --range on cmd.
func addSelectionFlags(cmd *cobra.Command, ids, rng *string) {
	cmd.Flags().StringVar(ids, "ids", "", "Comma-separated order ids, e.g. 1,4,9")
	cmd.Flags().StringVar(rng, "range", "", "Inclusive order id range, e.g. 1-500")
}

// maxRangeSpan bounds the number of ids a --range may expand to.
const maxRangeSpan = 1_000_000

// parseSelection turns --ids and --range into a selection. Nil selects every
// job.
func parseSelection(ids, rng string) ([]int64, error) {
	ids = strings.TrimSpace(ids)
	rng = strings.TrimSpace(rng)
	if ids != "" && rng != "" {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid job selection", fmt.Errorf("--ids and --range are mutually exclusive"))
	}

	switch {
	case ids != "":
		var out []int64
		for _, part := range strings.Split(ids, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, exitError(foundry.ExitInvalidArgument, "Invalid --ids", fmt.Errorf("%q is not an integer", part))
			}
			out = append(out, id)
		}
		if len(out) == 0 {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid --ids", errs.EmptyJobList("--ids"))
		}
		return out, nil

	case rng != "":
		lo, hi, ok := strings.Cut(rng, "-")
		if !ok {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid --range", fmt.Errorf("expected START-END, got %q", rng))
		}
		start, err1 := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
		end, err2 := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
		if err1 != nil || err2 != nil {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid --range", fmt.Errorf("expected START-END, got %q", rng))
		}
		if end < start {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid --range", fmt.Errorf("end %d is before start %d", end, start))
		}
		if end-start >= maxRangeSpan {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid --range",
				fmt.Errorf("range %q spans more than %d ids", rng, maxRangeSpan))
		}
		out := make([]int64, 0, end-start+1)
		for id := start; id <= end; id++ {
			out = append(out, id)
		}
		return out, nil
	}
	return nil, nil
}

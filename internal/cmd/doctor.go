package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fcmeyer/slurmhelper/internal/config"
	"github.com/fcmeyer/slurmhelper/internal/observability"
	"github.com/fcmeyer/slurmhelper/pkg/layout"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the installation and the working tree and suggest
fixes for common issues.

Examples:
  slurmhelper doctor                 # Full check of the current directory
  slurmhelper doctor --base /scratch/study --fix   # Also create missing dirs`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Create missing working-tree directories")
}

// errChecksFailed is returned when at least one doctor check failed.
var errChecksFailed = errors.New("diagnostic checks failed")

func runDoctor(cmd *cobra.Command, args []string) error {
	log := observability.CLILogger
	log.Info("=== slurmhelper doctor ===")
	log.Info("Running diagnostic checks...")

	allChecks := true
	checkNum := 1
	const totalChecks = 7
	step := func(label string) string {
		s := fmt.Sprintf("[%d/%d] Checking %s...", checkNum, totalChecks, label)
		checkNum++
		return s
	}

	// Check 1: Go version
	goVersion := runtime.Version()
	log.Info(step("Go version")+" ✅ "+goVersion, zap.String("go_version", goVersion))

	// Check 2: Crucible and Gofulmen
	version := crucible.GetVersion()
	if version.Crucible != "" && version.Gofulmen != "" {
		log.Info(fmt.Sprintf("%s ✅ crucible v%s, gofulmen v%s", step("Fulmen libraries"), version.Crucible, version.Gofulmen),
			zap.String("crucible_version", version.Crucible),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		log.Error(step("Fulmen libraries") + " ❌ version metadata unavailable")
		allChecks = false
	}

	// Check 3: Config file
	configPath := rootConfigFile
	if configPath == "" {
		configPath = config.DefaultConfigFile()
	}
	if _, err := os.Stat(configPath); err == nil {
		log.Info(step("config file")+" ✅ "+configPath, zap.String("config_file", configPath))
	} else {
		log.Info(step("config file")+" ✅ none (using defaults and SLURMHELPER_* env)", zap.String("config_file", configPath))
	}

	// Check 4: Working tree
	cfg := currentConfig()
	dirs, err := layout.FromBase(cfg.Paths.Base)
	if err != nil {
		log.Error(step("working tree")+" ❌ invalid base directory", zap.Error(err))
		allChecks = false
	} else if missing := missingDirs(dirs); len(missing) > 0 {
		if doctorFix {
			if err := dirs.Ensure(); err != nil {
				log.Error(step("working tree")+" ❌ cannot create directories", zap.Error(err))
				allChecks = false
			} else {
				log.Info(step("working tree")+" ✅ created missing directories", zap.Strings("created", missing))
			}
		} else {
			log.Warn(step("working tree")+" ⚠️  missing directories (run with --fix)", zap.Strings("missing", missing))
		}
	} else {
		log.Info(step("working tree")+" ✅ "+dirs.Base, zap.String("base", dirs.Base))
	}

	// Check 5 and 6: Job spec and database
	ws, err := openWorkspace()
	if err != nil {
		log.Error(step("job spec")+" ❌ cannot load", zap.Error(err))
		log.Error(step("job database") + " ❌ skipped (no job spec)")
		allChecks = false
	} else {
		if err := ws.spec.Model().Validate(); err != nil {
			log.Error(step("job spec")+" ❌ invalid time model", zap.Error(err))
			allChecks = false
		} else {
			log.Info(step("job spec")+" ✅ "+ws.specPath, zap.String("spec", ws.specPath))
		}

		jobs, err := ws.jobs(cmd.Context(), nil)
		if err != nil {
			log.Error(step("job database")+" ❌ cannot build job records", zap.Error(err))
			allChecks = false
		} else {
			log.Info(fmt.Sprintf("%s ✅ %d jobs", step("job database"), len(jobs)), zap.String("database", ws.dbPath))
		}
	}

	// Check 7: Scheduler
	if path, err := exec.LookPath("sbatch"); err == nil {
		log.Info(step("sbatch")+" ✅ "+path, zap.String("sbatch", path))
	} else {
		log.Warn(step("sbatch") + " ⚠️  not on PATH (scripts can still be prepared here and submitted elsewhere)")
	}

	if !allChecks {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
		return exitError(foundry.ExitInvalidArgument, "doctor", errChecksFailed)
	}
	log.Info("✅ All checks passed!")
	return nil
}

func missingDirs(d layout.Dirs) []string {
	var missing []string
	for _, dir := range []string{d.JobScripts, d.JobLogs, d.SlurmScripts, d.SlurmLogs, d.Checks} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			missing = append(missing, dir)
		}
	}
	return missing
}

// Package layout computes the working-directory layout shared by planning
// and inference.
//
//	<base>/db.csv
//	<base>/scripts/jobs/<job_id>_run.sh
//	<base>/scripts/slurm/sb-<sbatch_id>[-<array_index>].sh
//	<base>/logs/jobs/<job_id>.txt
//	<base>/logs/slurm/sb-<sbatch_id>[-<array_index>].txt
//	<base>/checks/check_<timestamp>.csv
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DatabaseFile is the default job database file name under the base dir.
const DatabaseFile = "db.csv"

// Dirs holds the named directories of a working tree.
type Dirs struct {
	Base         string `json:"base"`
	JobScripts   string `json:"job_scripts"`
	JobLogs      string `json:"job_logs"`
	SlurmScripts string `json:"slurm_scripts"`
	SlurmLogs    string `json:"slurm_logs"`
	Checks       string `json:"checks"`
}

// FromBase derives the standard layout rooted at base.
func FromBase(base string) (Dirs, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return Dirs{}, fmt.Errorf("base directory is required")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return Dirs{}, fmt.Errorf("resolve base directory: %w", err)
	}
	return Dirs{
		Base:         abs,
		JobScripts:   filepath.Join(abs, "scripts", "jobs"),
		JobLogs:      filepath.Join(abs, "logs", "jobs"),
		SlurmScripts: filepath.Join(abs, "scripts", "slurm"),
		SlurmLogs:    filepath.Join(abs, "logs", "slurm"),
		Checks:       filepath.Join(abs, "checks"),
	}, nil
}

// Ensure creates every directory of the layout.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.JobScripts, d.JobLogs, d.SlurmScripts, d.SlurmLogs, d.Checks} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Database returns the default job database path.
func (d Dirs) Database() string {
	return filepath.Join(d.Base, DatabaseFile)
}

// JobScript returns the run script path for a formatted job id.
func (d Dirs) JobScript(jobID string) string {
	return filepath.Join(d.JobScripts, jobID+"_run.sh")
}

// JobLog returns the log path for a formatted job id.
func (d Dirs) JobLog(jobID string) string {
	return filepath.Join(d.JobLogs, jobID+".txt")
}

// SlurmScript returns the path of a submission script by name (without extension).
func (d Dirs) SlurmScript(name string) string {
	return filepath.Join(d.SlurmScripts, name+".sh")
}

// SlurmLog returns the path of a submission log by name (without extension).
func (d Dirs) SlurmLog(name string) string {
	return filepath.Join(d.SlurmLogs, name+".txt")
}

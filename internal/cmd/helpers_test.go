package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const testSpec = `version: "1.0"
header: |
  #!/bin/bash -e
  #SBATCH --job-name=$job_name
  #SBATCH --output=$log_path
  #SBATCH --ntasks=$n_tasks
  #SBATCH --mem=$mem
  #SBATCH --time=$time
  $job_array
preamble: |
  module load python
  source activate $conda_env
array_footer: |
  bash $path_to_array
run_script: |
  #!/bin/bash
  python run.py --subject {subject} --env {conda_env} --job {job_id}
job_ramp_up_time: 5m
job_time: 1h
max_job_time: 4h
script_global_settings:
  conda_env: /envs/fmri
output:
  output_path: OUTROOT
  output_path_subject:
    - "sub-{subject}"
  output_path_subject_expr: "*.nii.gz"
`

// newTree creates a working tree with a spec and a database of n jobs
// (order ids 1..n, subject s01..).
func newTree(t *testing.T, n int) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)

	base := t.TempDir()
	spec := strings.ReplaceAll(testSpec, "OUTROOT", filepath.Join(base, "out"))
	require.NoError(t, os.WriteFile(filepath.Join(base, "spec.yaml"), []byte(spec), 0o644))

	var db strings.Builder
	db.WriteString("order_id,subject\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&db, "%d,s%02d\n", i, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(base, "db.csv"), []byte(db.String()), 0o644))
	return base
}

func writeJobLog(t *testing.T, base, jobID, content string) {
	t.Helper()
	dir := filepath.Join(base, "logs", "jobs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, jobID+".txt"), []byte(content), 0o644))
}

func successLog(runtime int) string {
	return fmt.Sprintf("starting\nprocessing\nruntime: %d\nJOB COMPLETED SUCCESSFULLY\ncleanup\n", runtime)
}

const failedLog = "starting\nprocessing\nTraceback (most recent call last):\nValueError: bad input\n"

// resetFlags restores every flag of the command tree to its default so
// consecutive executions do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the command tree with args and returns captured stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	appConfig = nil

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	rootCmd.SetArgs(args)
	runErr := rootCmd.ExecuteContext(context.Background())
	rootCmd.SetArgs(nil)

	require.NoError(t, w.Close())
	os.Stdout = oldStdout
	return <-done, runErr
}

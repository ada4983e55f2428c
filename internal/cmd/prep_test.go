package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
	"github.com/fcmeyer/slurmhelper/pkg/output"
	"github.com/fcmeyer/slurmhelper/pkg/script"
	"github.com/fcmeyer/slurmhelper/pkg/submissions"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestPrep_WritesSerialWrapper(t *testing.T) {
	base := newTree(t, 5)

	out, err := runCLI(t, "prep", "--base", base, "--sbatch-id", "1", "--range", "1-3")
	require.NoError(t, err)

	path := filepath.Join(base, "scripts", "slurm", "sb-0001.sh")
	assert.Equal(t, "sbatch "+path+"\n", out)

	text := readFile(t, path)
	assert.True(t, strings.HasPrefix(text, "#!/bin/bash -e\n#SBATCH --job-name=sb-0001\n"))
	assert.Contains(t, text, "#SBATCH --output="+filepath.Join(base, "logs", "slurm", "sb-0001.txt"))
	assert.Contains(t, text, "#SBATCH --ntasks=1\n#SBATCH --mem=4G\n#SBATCH --time=03:05:00")
	assert.Contains(t, text, "source activate $conda_env")
	for _, id := range []string{"00001", "00002", "00003"} {
		assert.Contains(t, text, fmt.Sprintf("bash %s 2>&1 | tee %s",
			filepath.Join(base, "scripts", "jobs", id+"_run.sh"),
			filepath.Join(base, "logs", "jobs", id+".txt")))
	}
	assert.NotContains(t, text, "00004")
	assert.True(t, strings.HasSuffix(text, script.CompletionSentinel+"\n\nexit"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	rec, err := submissions.NewStore(filepath.Join(base, "scripts", "slurm")).Get(1)
	require.NoError(t, err)
	assert.Equal(t, submissions.KindSerial, rec.Kind)
	assert.Equal(t, []string{"00001", "00002", "00003"}, rec.JobIDs)
	assert.Equal(t, "03:05:00", rec.WallTime)
	assert.False(t, rec.ManualTime)
	assert.NotEmpty(t, rec.RunID)
	assert.False(t, rec.CreatedAt.IsZero())

	// Working tree directories exist after a real prep.
	for _, dir := range []string{"logs/jobs", "logs/slurm", "checks", "scripts/jobs"} {
		assert.DirExists(t, filepath.Join(base, dir))
	}
}

func TestPrep_RefusesOverwriteWithoutForce(t *testing.T) {
	base := newTree(t, 2)

	_, err := runCLI(t, "prep", "--base", base, "--sbatch-id", "7")
	require.NoError(t, err)

	_, err = runCLI(t, "prep", "--base", base, "--sbatch-id", "7")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	assert.Contains(t, err.Error(), "sb-0007")

	_, err = runCLI(t, "prep", "--base", base, "--sbatch-id", "7", "--force", "--time", "12h")
	require.NoError(t, err)
	text := readFile(t, filepath.Join(base, "scripts", "slurm", "sb-0007.sh"))
	assert.Contains(t, text, "#SBATCH --time=12:00:00")

	rec, err := submissions.NewStore(filepath.Join(base, "scripts", "slurm")).Get(7)
	require.NoError(t, err)
	assert.True(t, rec.ManualTime)
}

func TestPrep_DryRunWritesNothing(t *testing.T) {
	base := newTree(t, 2)

	out, err := runCLI(t, "prep", "--base", base, "--sbatch-id", "2", "--dry", "--no-header")
	require.NoError(t, err)

	assert.Contains(t, out, "# ---- sb-0002.sh ----\n#!/bin/bash -e\nmodule load python\n")
	assert.NotContains(t, out, "#SBATCH")
	assert.NotContains(t, out, "sbatch ")
	assert.NoFileExists(t, filepath.Join(base, "scripts", "slurm", "sb-0002.sh"))
	assert.NoDirExists(t, filepath.Join(base, "scripts"))
}

func TestPrep_JSON(t *testing.T) {
	base := newTree(t, 4)

	out, err := runCLI(t, "prep", "--base", base, "--sbatch-id", "3", "--ids", "2,4", "--json")
	require.NoError(t, err)

	var rec output.Record
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
	assert.Equal(t, output.TypeSubmission, rec.Type)
	assert.Equal(t, "prep", rec.Command)

	var sub output.SubmissionRecord
	require.NoError(t, json.Unmarshal(rec.Data, &sub))
	assert.Equal(t, "sb-0003", sub.Name)
	assert.Equal(t, "serial", sub.Kind)
	assert.Equal(t, 2, sub.Jobs)
	assert.Equal(t, "02:05:00", sub.WallTime)
	assert.False(t, sub.DryRun)
}

func TestPrep_InvalidInput(t *testing.T) {
	base := newTree(t, 3)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing sbatch id", []string{"prep", "--base", base}, foundry.ExitInvalidArgument},
		{"ids and range", []string{"prep", "--base", base, "--sbatch-id", "1", "--ids", "1", "--range", "1-2"}, foundry.ExitInvalidArgument},
		{"bad range", []string{"prep", "--base", base, "--sbatch-id", "1", "--range", "5-2"}, foundry.ExitInvalidArgument},
		{"bad ids", []string{"prep", "--base", base, "--sbatch-id", "1", "--ids", "1,x"}, foundry.ExitInvalidArgument},
		{"unknown ids", []string{"prep", "--base", base, "--sbatch-id", "1", "--ids", "40,41"}, foundry.ExitInvalidArgument},
		{"missing base", []string{"prep", "--base", filepath.Join(base, "nope"), "--sbatch-id", "1"}, foundry.ExitFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, ExitCode(err))
		})
	}
}

func TestPrep_UnknownIDsIsEmptyJobList(t *testing.T) {
	base := newTree(t, 3)
	_, err := runCLI(t, "prep", "--base", base, "--sbatch-id", "1", "--ids", "40")
	require.Error(t, err)
	assert.True(t, errs.IsEmptyJobList(err))
}

func TestPrep_MissingSpec(t *testing.T) {
	base := newTree(t, 3)
	require.NoError(t, os.Remove(filepath.Join(base, "spec.yaml")))

	_, err := runCLI(t, "prep", "--base", base, "--sbatch-id", "1")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, ExitCode(err))
}

func TestPrepArray_WritesElementsAndDispatcher(t *testing.T) {
	base := newTree(t, 10)
	slurmScripts := filepath.Join(base, "scripts", "slurm")

	out, err := runCLI(t, "prep-array", "--base", base, "--sbatch-id", "4", "--rate-limit", "2")
	require.NoError(t, err)

	dispatcherPath := filepath.Join(slurmScripts, "sb-0004.sh")
	assert.Equal(t, "sbatch "+dispatcherPath+"\n", out)

	dispatcher := readFile(t, dispatcherPath)
	assert.Contains(t, dispatcher, "#SBATCH --job-name=sb-0004\n")
	assert.Contains(t, dispatcher, "#SBATCH --output="+filepath.Join(base, "logs", "slurm", "sb-0004-%a.txt"))
	assert.Contains(t, dispatcher, "#SBATCH --time=04:05:00")
	assert.Contains(t, dispatcher, "#SBATCH --array=100-102%2")
	assert.Contains(t, dispatcher, "bash "+filepath.Join(slurmScripts, "sb-0004-$SLURM_ARRAY_TASK_ID.sh"))
	assert.NotContains(t, dispatcher, "module load python")

	wantParcels := [][]string{
		{"00001", "00002", "00003", "00004"},
		{"00005", "00006", "00007"},
		{"00008", "00009", "00010"},
	}
	for i, parcel := range wantParcels {
		text := readFile(t, filepath.Join(slurmScripts, fmt.Sprintf("sb-0004-%d.sh", 100+i)))
		assert.True(t, strings.HasPrefix(text, "#!/bin/bash -e\nmodule load python\n"))
		assert.NotContains(t, text, "#SBATCH")
		assert.Equal(t, len(parcel), strings.Count(text, "2>&1 | tee"))
		for _, id := range parcel {
			assert.Contains(t, text, filepath.Join(base, "logs", "jobs", id+".txt"))
		}
	}
	assert.NoFileExists(t, filepath.Join(slurmScripts, "sb-0004-103.sh"))

	rec, err := submissions.NewStore(slurmScripts).Get(4)
	require.NoError(t, err)
	assert.Equal(t, submissions.KindArray, rec.Kind)
	assert.Equal(t, wantParcels, rec.Parcels)
	assert.Equal(t, 2, rec.RateLimit)
	assert.Equal(t, "04:05:00", rec.WallTime)
}

func TestPrepArray_ManualParcelsAndTime(t *testing.T) {
	base := newTree(t, 10)

	out, err := runCLI(t, "prep-array", "--base", base, "--sbatch-id", "5", "--n-parcels", "5", "--time", "30h", "--dry")
	require.NoError(t, err)

	assert.Equal(t, 6, strings.Count(out, "# ---- sb-0005"))
	assert.Contains(t, out, "# ---- sb-0005-104.sh ----")
	assert.Contains(t, out, "#SBATCH --array=100-104\n")
	assert.Contains(t, out, "#SBATCH --time=1-06:00:00")
	assert.NoDirExists(t, filepath.Join(base, "scripts"))
}

func TestPrepArray_Errors(t *testing.T) {
	base := newTree(t, 3)

	_, err := runCLI(t, "prep-array", "--base", base, "--sbatch-id", "1", "--n-parcels", "4")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidPartitionCount(err))
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))

	_, err = runCLI(t, "prep-array", "--base", base, "--sbatch-id", "1", "--rate-limit", "-1")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
}

func TestGenScripts(t *testing.T) {
	base := newTree(t, 3)

	out, err := runCLI(t, "gen-scripts", "--base", base, "--range", "1-2")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 run scripts")

	text := readFile(t, filepath.Join(base, "scripts", "jobs", "00002_run.sh"))
	assert.Equal(t, "#!/bin/bash\npython run.py --subject s02 --env /envs/fmri --job 00002\n", text)
	assert.NoFileExists(t, filepath.Join(base, "scripts", "jobs", "00003_run.sh"))

	out, err = runCLI(t, "gen-scripts", "--base", base, "--ids", "3", "--dry")
	require.NoError(t, err)
	assert.Contains(t, out, "# ---- 00003_run.sh ----\n#!/bin/bash\npython run.py --subject s03")
	assert.NoFileExists(t, filepath.Join(base, "scripts", "jobs", "00003_run.sh"))
}

func TestGenScripts_UnknownField(t *testing.T) {
	base := newTree(t, 2)
	specPath := filepath.Join(base, "spec.yaml")
	spec := strings.Replace(readFile(t, specPath), "--job {job_id}", "--session {session}", 1)
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o644))

	_, err := runCLI(t, "gen-scripts", "--base", base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session")
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
}

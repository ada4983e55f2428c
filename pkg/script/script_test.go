package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
	"github.com/fcmeyer/slurmhelper/pkg/layout"
	"github.com/fcmeyer/slurmhelper/pkg/walltime"
)

const testHeader = `#!/bin/bash -e
#SBATCH --job-name=$job_name
#SBATCH --output=$log_path
#SBATCH --ntasks=$n_tasks
#SBATCH --mem=$mem
#SBATCH --time=$time
#SBATCH --account=$account
$job_array`

func testSynth() *Synthesizer {
	return New(Templates{
		Header:      testHeader,
		Preamble:    "module load python\nsource activate $conda_env\necho $HOME",
		ArrayFooter: "bash $path_to_array",
	})
}

func testResources() Resources {
	return Resources{NTasks: 1, Memory: "4G", Time: "02:05:00"}
}

func TestWrapper_WithHeader(t *testing.T) {
	got := testSynth().Wrapper(WrapperRequest{
		JobName:   "sb-0001",
		LogPath:   "/base/logs/slurm/sb-0001.txt",
		Resources: testResources(),
		Jobs: []Job{
			{ScriptPath: "/base/scripts/jobs/00001_run.sh", LogPath: "/base/logs/jobs/00001.txt"},
			{ScriptPath: "/base/scripts/jobs/00002_run.sh", LogPath: "/base/logs/jobs/00002.txt"},
		},
	})

	want := `#!/bin/bash -e
#SBATCH --job-name=sb-0001
#SBATCH --output=/base/logs/slurm/sb-0001.txt
#SBATCH --ntasks=1
#SBATCH --mem=4G
#SBATCH --time=02:05:00
#SBATCH --account=$account

module load python
source activate $conda_env
echo $HOME

bash /base/scripts/jobs/00001_run.sh 2>&1 | tee /base/logs/jobs/00001.txt
bash /base/scripts/jobs/00002_run.sh 2>&1 | tee /base/logs/jobs/00002.txt

echo "~~~~~~~~~~~~~ END SLURM JOB ~~~~~~~~~~~~~~"

exit`
	assert.Equal(t, want, got)
}

func TestWrapper_NoHeader(t *testing.T) {
	got := testSynth().Wrapper(WrapperRequest{
		JobName:  "sb-0001-100",
		NoHeader: true,
		Jobs:     []Job{{ScriptPath: "a.sh", LogPath: "a.txt"}},
	})

	assert.True(t, strings.HasPrefix(got, "#!/bin/bash -e\nmodule load python\n"))
	assert.NotContains(t, got, "#SBATCH")
	assert.True(t, strings.HasSuffix(got, CompletionSentinel+"\n\nexit"))
	assert.Contains(t, got, "bash a.sh 2>&1 | tee a.txt")
}

func TestWrapper_PreambleVerbatim(t *testing.T) {
	preamble := "echo pid=$$\nexport PATH=$HOME/bin:$PATH\necho $job_name"
	synth := New(Templates{Header: testHeader, Preamble: preamble})

	for _, noHeader := range []bool{false, true} {
		got := synth.Wrapper(WrapperRequest{
			JobName:   "sb-0001",
			LogPath:   "/base/logs/slurm/sb-0001.txt",
			Resources: testResources(),
			NoHeader:  noHeader,
			Jobs:      []Job{{ScriptPath: "a.sh", LogPath: "a.txt"}},
		})
		assert.Contains(t, got, "\n"+preamble+"\n\nbash a.sh")
	}
}

func TestWrapper_Deterministic(t *testing.T) {
	req := WrapperRequest{
		JobName:   "sb-0009",
		LogPath:   "x.txt",
		Resources: testResources(),
		Jobs:      JobsFor(layout.Dirs{JobScripts: "/s", JobLogs: "/l"}, []string{"00003", "00001", "00002"}),
	}
	a := testSynth().Wrapper(req)
	b := testSynth().Wrapper(req)
	assert.Equal(t, a, b)

	// Job order follows the request.
	i3 := strings.Index(a, "00003_run.sh")
	i1 := strings.Index(a, "00001_run.sh")
	assert.Less(t, i3, i1)
}

func TestDispatcher(t *testing.T) {
	got, err := testSynth().Dispatcher(DispatcherRequest{
		JobName:     Name(7),
		LogPattern:  ElementLogPattern("/base/logs/slurm", 7),
		Resources:   testResources(),
		NParcels:    3,
		RateLimit:   2,
		WrapperPath: ElementWrapperPath("/base/scripts/slurm", 7),
	})
	require.NoError(t, err)

	want := `#!/bin/bash -e
#SBATCH --job-name=sb-0007
#SBATCH --output=/base/logs/slurm/sb-0007-%a.txt
#SBATCH --ntasks=1
#SBATCH --mem=4G
#SBATCH --time=02:05:00
#SBATCH --account=$account
#SBATCH --array=100-102%2
bash /base/scripts/slurm/sb-0007-$SLURM_ARRAY_TASK_ID.sh`
	assert.Equal(t, want, got)
}

func TestDispatcher_Errors(t *testing.T) {
	_, err := testSynth().Dispatcher(DispatcherRequest{NParcels: 0})
	assert.Error(t, err)

	_, err = testSynth().Dispatcher(DispatcherRequest{NParcels: 2, RateLimit: -1})
	assert.Error(t, err)
}

func TestArrayDirective(t *testing.T) {
	assert.Equal(t, "#SBATCH --array=100-102", ArrayDirective(3, 0))
	assert.Equal(t, "#SBATCH --array=100-100%5", ArrayDirective(1, 5))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "sb-0042", Name(42))
	assert.Equal(t, "sb-0042-101", ElementName(42, 101))
	assert.Equal(t, "sb-12345", Name(12345))

	tests := []struct {
		in    string
		id    int
		index int
		ok    bool
	}{
		{"sb-0042.sh", 42, -1, true},
		{"sb-0042-101.sh", 42, 101, true},
		{"sb-0042-101.txt", 42, 101, true},
		{"sb-42.sh", 0, 0, false},
		{"sb-0042-1.sh", 0, 0, false},
		{"sb-00a2.sh", 0, 0, false},
		{"job-0042.sh", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, idx, ok := ParseName(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.index, idx)
		})
	}
}

func TestPlanArray(t *testing.T) {
	m := walltime.Model{RampUp: 5 * time.Minute, PerJob: time.Hour, MaxPartition: 4 * time.Hour}
	ids := []string{"00001", "00002", "00003", "00004", "00005", "00006", "00007", "00008", "00009", "00010"}

	plan, err := PlanArray(m, ids, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 3}, plan.Sizes)
	assert.Equal(t, 4*time.Hour+5*time.Minute, plan.WallTime)
	assert.Equal(t, ids[:4], plan.Parcels[0])

	plan, err = PlanArray(m, ids, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2, 2}, plan.Sizes)
	assert.Equal(t, 2*time.Hour+5*time.Minute, plan.WallTime)

	_, err = PlanArray(m, ids, 11)
	assert.True(t, errs.IsInvalidPartitionCount(err))

	_, err = PlanArray(m, nil, 0)
	assert.True(t, errs.IsEmptyJobList(err))

	_, err = PlanArray(walltime.Model{PerJob: time.Hour}, ids, 0)
	assert.True(t, errs.IsConfiguration(err))
}

func TestWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "slurm")
	w := NewWriter(dir)

	path, err := w.Write("sb-0001", "echo hi\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sb-0001.sh"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	_, err = w.Write("sb-0001", "echo again\n")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "echo again\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = w.Write(" ", "x")
	assert.Error(t, err)
}

func TestListPrepared(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"sb-0002.sh", "sb-0001.sh", "sb-0002-101.sh", "sb-0002-100.sh", "sb-0003-100.sh", "notes.sh", "sb-0001.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got, err := ListPrepared(dir)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].SbatchID)
	assert.False(t, got[0].IsArray())
	assert.Equal(t, filepath.Join(dir, "sb-0001.sh"), got[0].Path)

	assert.Equal(t, 2, got[1].SbatchID)
	assert.Equal(t, []int{100, 101}, got[1].Elements)

	assert.Equal(t, 3, got[2].SbatchID)
	assert.Empty(t, got[2].Path)

	none, err := ListPrepared(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestElementLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"sb-0002.txt", "sb-0002-101.txt", "sb-0002-100.txt", "sb-0003-100.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	got, err := ElementLogs(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "sb-0002-100.txt"), filepath.Join(dir, "sb-0002-101.txt")}, got)
}

func TestRunScripts(t *testing.T) {
	rs, err := NewRunScripts("python run.py --sub {subject} --out {job_id}_{run_id}.nii --env {conda_env}\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"subject", "job_id", "run_id", "conda_env"}, rs.Fields())

	job := jobdb.Descriptor{
		OrderID: 3,
		JobID:   "00003",
		RunID:   "02",
		Attrs:   map[string]string{"subject": "NDA01", "conda_env": "/envs/a"},
	}
	out, err := rs.Render(job)
	require.NoError(t, err)
	assert.Equal(t, "python run.py --sub NDA01 --out 00003_02.nii --env /envs/a\n", out)
	assert.Empty(t, rs.Missing(job))

	job.RunID = ""
	_, err = rs.Render(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{run_id}")
	assert.Equal(t, []string{"run_id"}, rs.Missing(job))

	_, err = NewRunScripts("")
	assert.Error(t, err)
	_, err = NewRunScripts("{oops")
	assert.Error(t, err)
}

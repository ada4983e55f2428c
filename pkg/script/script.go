// Package script renders sbatch submission scripts.
//
// Two kinds of script are produced. A serial wrapper runs a list of jobs one
// after the other, teeing each job's output to its own log. An array
// dispatcher declares an sbatch array over the parcels of a batch and runs
// the wrapper of whichever parcel the scheduler assigns to the element.
//
// Rendering is a pure function of its inputs: identical requests yield
// byte-identical scripts.
package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fcmeyer/slurmhelper/pkg/layout"
	"github.com/fcmeyer/slurmhelper/pkg/parcel"
	"github.com/fcmeyer/slurmhelper/pkg/tmpl"
)

// Shebang starts every header-less wrapper.
const Shebang = "#!/bin/bash -e"

// CompletionSentinel is echoed once every job of a wrapper has run.
const CompletionSentinel = `echo "~~~~~~~~~~~~~ END SLURM JOB ~~~~~~~~~~~~~~"`

// ArrayTaskVar is resolved by the scheduler to the running array index.
const ArrayTaskVar = "$SLURM_ARRAY_TASK_ID"

// Header placeholders understood by the synthesizer.
const (
	VarJobName     = "job_name"
	VarLogPath     = "log_path"
	VarNTasks      = "n_tasks"
	VarMem         = "mem"
	VarTime        = "time"
	VarJobArray    = "job_array"
	VarPathToArray = "path_to_array"
)

// Templates are the user-authored parts of every script.
type Templates struct {
	// Header is the sbatch resource request ($-template).
	Header string
	// Preamble follows the header (environment setup). It is emitted
	// verbatim; shell syntax such as $$ or $PATH is never substituted.
	Preamble string
	// ArrayFooter runs the parcel wrapper; $path_to_array is its path.
	ArrayFooter string
}

// Resources are the values substituted into a resource-request header.
type Resources struct {
	NTasks int
	Memory string
	// Time is already in sbatch notation, e.g. "02:30:00" or "1-00:00:00".
	Time string
}

// Job is one line of a serial wrapper.
type Job struct {
	ScriptPath string
	LogPath    string
}

// JobsFor maps formatted job ids to their script and log paths under dirs.
func JobsFor(dirs layout.Dirs, jobIDs []string) []Job {
	out := make([]Job, len(jobIDs))
	for i, id := range jobIDs {
		out[i] = Job{ScriptPath: dirs.JobScript(id), LogPath: dirs.JobLog(id)}
	}
	return out
}

// Synthesizer renders scripts from a fixed set of templates.
type Synthesizer struct {
	header   *tmpl.Template
	preamble string
	footer   *tmpl.Template
}

// New compiles the header and footer of t.
func New(t Templates) *Synthesizer {
	return &Synthesizer{
		header:   tmpl.Compile(t.Header),
		preamble: t.Preamble,
		footer:   tmpl.Compile(t.ArrayFooter),
	}
}

// WrapperRequest describes a serial wrapper.
type WrapperRequest struct {
	JobName string
	// LogPath is where the scheduler writes the wrapper's own output.
	LogPath   string
	Resources Resources
	Jobs      []Job
	// NoHeader omits the resource request; used for parcel wrappers that are
	// called by an array dispatcher.
	NoHeader bool
}

// Wrapper renders a serial wrapper: header, one call per job, the completion
// sentinel and an explicit exit, separated by blank lines.
func (s *Synthesizer) Wrapper(req WrapperRequest) string {
	var head string
	if req.NoHeader {
		head = Shebang + "\n" + s.preamble
	} else {
		head = s.renderHeader(req.JobName, req.LogPath, req.Resources, "") + "\n" + s.preamble
	}

	calls := make([]string, len(req.Jobs))
	for i, j := range req.Jobs {
		calls[i] = fmt.Sprintf("bash %s 2>&1 | tee %s", j.ScriptPath, j.LogPath)
	}

	return strings.Join([]string{
		head,
		strings.Join(calls, "\n"),
		CompletionSentinel,
		"exit",
	}, "\n\n")
}

// DispatcherRequest describes an array dispatcher.
type DispatcherRequest struct {
	JobName string
	// LogPattern is the per-element log path; it normally contains %a.
	LogPattern string
	Resources  Resources
	NParcels   int
	// RateLimit caps concurrently running elements (0 = unlimited).
	RateLimit int
	// WrapperPath addresses the parcel wrapper of the running element,
	// normally via ArrayTaskVar.
	WrapperPath string
}

// ArrayDirective returns the sbatch array line for n parcels, e.g.
// "#SBATCH --array=100-102%4".
func ArrayDirective(n, rateLimit int) string {
	d := "#SBATCH --array=" + parcel.ArrayRange(n)
	if rateLimit > 0 {
		d += "%" + strconv.Itoa(rateLimit)
	}
	return d
}

// Dispatcher renders an array dispatcher: the header carrying the array
// directive followed by the resolved footer. Resources.Time must already be
// the longest parcel estimate.
func (s *Synthesizer) Dispatcher(req DispatcherRequest) (string, error) {
	if req.NParcels < 1 {
		return "", fmt.Errorf("array dispatcher needs at least one parcel, got %d", req.NParcels)
	}
	if req.RateLimit < 0 {
		return "", fmt.Errorf("array rate limit must not be negative, got %d", req.RateLimit)
	}
	hdr := s.renderHeader(req.JobName, req.LogPattern, req.Resources, ArrayDirective(req.NParcels, req.RateLimit))
	footer := s.footer.Apply(map[string]string{VarPathToArray: req.WrapperPath})
	return hdr + "\n" + footer, nil
}

func (s *Synthesizer) renderHeader(jobName, logPath string, r Resources, jobArray string) string {
	return s.header.Apply(map[string]string{
		VarJobName:  jobName,
		VarLogPath:  logPath,
		VarNTasks:   strconv.Itoa(r.NTasks),
		VarMem:      r.Memory,
		VarTime:     r.Time,
		VarJobArray: jobArray,
	})
}

// Package jobspec provides loading and validation of slurmhelper job spec files.
//
// A job spec is a YAML or JSON file describing how submission scripts are
// rendered (header, preamble, array footer, per-job run script), the linear
// cost assumptions used to size them, global script parameters, and the log
// conventions used to infer job outcomes afterwards.
//
// Specs are validated against an embedded JSON Schema before being decoded;
// unknown properties are rejected.
//
// Example spec (YAML):
//
//	version: "1.0"
//	header: |
//	  #!/bin/bash -e
//	  #SBATCH --job-name=$job_name
//	  #SBATCH --output=$log_path
//	  #SBATCH --ntasks=$n_tasks
//	  #SBATCH --mem=$mem
//	  #SBATCH --time=$time
//	  $job_array
//	preamble: |
//	  module load python
//	array_footer: |
//	  bash $path_to_array
//	job_ramp_up_time: 5m
//	job_time: 1h
//	max_job_time: 23h
//	script_global_settings:
//	  conda_env: /project/envs/fmri
package jobspec

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fcmeyer/slurmhelper/pkg/inference"
	"github.com/fcmeyer/slurmhelper/pkg/script"
	"github.com/fcmeyer/slurmhelper/pkg/walltime"
)

// Spec represents a validated job spec. Treat it as immutable once loaded.
type Spec struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the job spec schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Header is the sbatch resource-request header ($-template).
	// Known placeholders: job_name, log_path, n_tasks, mem, time, job_array.
	Header string `json:"header" yaml:"header"`

	// Preamble is appended after the header (environment setup).
	Preamble string `json:"preamble" yaml:"preamble"`

	// ArrayFooter invokes the per-parcel wrapper ($-template with path_to_array).
	ArrayFooter string `json:"array_footer" yaml:"array_footer"`

	// RunScript is the per-job run script body ({field} template). Optional.
	RunScript string `json:"run_script,omitempty" yaml:"run_script,omitempty"`

	// JobRampUpTime is the fixed overhead per script.
	JobRampUpTime Duration `json:"job_ramp_up_time" yaml:"job_ramp_up_time"`

	// JobTime is the expected duration of one job.
	JobTime Duration `json:"job_time" yaml:"job_time"`

	// MaxJobTime is the ceiling for any single serial script or parcel.
	MaxJobTime Duration `json:"max_job_time" yaml:"max_job_time"`

	// ScriptGlobalSettings are merged into every job record (row values win).
	ScriptGlobalSettings map[string]any `json:"script_global_settings,omitempty" yaml:"script_global_settings,omitempty"`

	// Log configures how job logs are interpreted (optional).
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Output configures output validation for `check runs` (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// LogConfig overrides the default log conventions. Empty fields keep
// defaults. A nil RuntimeOffset is unset; 0 addresses the first log line.
type LogConfig struct {
	SuccessMarker     string   `json:"success_marker,omitempty" yaml:"success_marker,omitempty"`
	RuntimePrefix     string   `json:"runtime_prefix,omitempty" yaml:"runtime_prefix,omitempty"`
	RuntimeOffset     *int     `json:"runtime_offset,omitempty" yaml:"runtime_offset,omitempty"`
	RuntimePrefixMode string   `json:"runtime_prefix_mode,omitempty" yaml:"runtime_prefix_mode,omitempty"`
	Noise             []string `json:"noise,omitempty" yaml:"noise,omitempty"`
}

// OutputConfig locates each job's expected outputs.
//
// The directory is output_path joined with the output_path_subject elements,
// and output_path_subject_expr is a glob evaluated inside it. All three are
// {field} templates resolved against the job record.
type OutputConfig struct {
	OutputPath            string   `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	OutputPathSubject     []string `json:"output_path_subject,omitempty" yaml:"output_path_subject,omitempty"`
	OutputPathSubjectExpr string   `json:"output_path_subject_expr,omitempty" yaml:"output_path_subject_expr,omitempty"`
}

// Enabled reports whether output validation is configured.
func (o OutputConfig) Enabled() bool {
	return o.OutputPathSubjectExpr != ""
}

// DefaultVersion is the current spec schema version.
const DefaultVersion = "1.0"

// ApplyDefaults fills in default values for optional fields.
func (s *Spec) ApplyDefaults() {
	if s.Version == "" {
		s.Version = DefaultVersion
	}
	if s.ScriptGlobalSettings == nil {
		s.ScriptGlobalSettings = map[string]any{}
	}
	def := inference.DefaultConventions()
	if s.Log.SuccessMarker == "" {
		s.Log.SuccessMarker = def.SuccessMarker
	}
	if s.Log.RuntimePrefix == "" {
		s.Log.RuntimePrefix = def.RuntimePrefix
	}
	if s.Log.RuntimeOffset == nil {
		offset := def.RuntimeOffset
		s.Log.RuntimeOffset = &offset
	}
	if s.Log.RuntimePrefixMode == "" {
		s.Log.RuntimePrefixMode = string(def.PrefixMode)
	}
	if s.Log.Noise == nil {
		s.Log.Noise = def.Noise
	}
}

// Model returns the wall-time model described by the job spec.
func (s *Spec) Model() walltime.Model {
	return walltime.Model{
		RampUp:       time.Duration(s.JobRampUpTime),
		PerJob:       time.Duration(s.JobTime),
		MaxPartition: time.Duration(s.MaxJobTime),
	}
}

// Templates returns the script templates of the job spec.
func (s *Spec) Templates() script.Templates {
	return script.Templates{
		Header:      s.Header,
		Preamble:    s.Preamble,
		ArrayFooter: s.ArrayFooter,
	}
}

// Conventions returns the log conventions described by the job spec.
func (s *Spec) Conventions() inference.Conventions {
	offset := inference.DefaultConventions().RuntimeOffset
	if s.Log.RuntimeOffset != nil {
		offset = *s.Log.RuntimeOffset
	}
	return inference.Conventions{
		SuccessMarker: s.Log.SuccessMarker,
		RuntimePrefix: s.Log.RuntimePrefix,
		RuntimeOffset: offset,
		PrefixMode:    inference.PrefixMode(s.Log.RuntimePrefixMode),
		Noise:         s.Log.Noise,
	}
}

// Duration is a time.Duration encoded as a Go duration string ("90m", "1h30m").
type Duration time.Duration

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

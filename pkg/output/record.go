// Package output provides JSONL output for check and prep results.
//
// Output is structured as typed record envelopes containing outcomes,
// summaries, runtime statistics, submissions and errors. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fcmeyer/slurmhelper/pkg/inference"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: slurmhelper.<type>.v<version>
const (
	// TypeOutcome identifies per-job outcome records.
	TypeOutcome = "slurmhelper.outcome.v1"

	// TypeSummary identifies aggregate summary records.
	TypeSummary = "slurmhelper.summary.v1"

	// TypeRuntimeStats identifies runtime statistics records.
	TypeRuntimeStats = "slurmhelper.runtime_stats.v1"

	// TypeSubmission identifies prepared submission records.
	TypeSubmission = "slurmhelper.submission.v1"

	// TypeError identifies error records.
	TypeError = "slurmhelper.error.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "slurmhelper.outcome.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID correlates every record of one invocation.
	RunID string `json:"run_id"`

	// Command is the emitting command (e.g., "check completed").
	Command string `json:"command"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// OutcomeRecord is the data payload for one job's inferred outcome.
type OutcomeRecord struct {
	OrderID int64  `json:"order_id"`
	JobID   string `json:"job_id"`
	LogPath string `json:"log_path"`
	HasLog  bool   `json:"has_log"`

	// Succeeded is meaningful only when HasLog is true.
	Succeeded bool `json:"succeeded"`

	// RuntimeSeconds is omitted when the runtime is unknown.
	RuntimeSeconds *int64 `json:"runtime_seconds,omitempty"`

	// Valid is omitted unless output validation ran.
	Valid *bool `json:"valid,omitempty"`

	ReadError string `json:"read_error,omitempty"`
}

// NewOutcomeRecord converts an inference outcome.
func NewOutcomeRecord(o inference.Outcome) *OutcomeRecord {
	rec := &OutcomeRecord{
		OrderID:   o.OrderID,
		JobID:     o.JobID,
		LogPath:   o.LogPath,
		HasLog:    o.HasLog,
		Succeeded: o.Succeeded,
		Valid:     o.Valid,
		ReadError: o.ReadError,
	}
	if o.RuntimeKnown {
		secs := int64(o.Runtime / time.Second)
		rec.RuntimeSeconds = &secs
	}
	return rec
}

// SummaryRecord is the data payload for an aggregate over considered jobs.
//
// Percentages are omitted when their denominator is zero.
type SummaryRecord struct {
	Considered int `json:"considered"`
	WithLogs   int `json:"with_logs"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	NoLog      int `json:"no_log"`

	PercentWithLogs          *float64 `json:"percent_with_logs,omitempty"`
	PercentSucceeded         *float64 `json:"percent_succeeded,omitempty"`
	PercentSucceededOfLogged *float64 `json:"percent_succeeded_of_logged,omitempty"`

	NoLogIDs  []string `json:"no_log_ids,omitempty"`
	FailedIDs []string `json:"failed_ids,omitempty"`

	// AuditPath is the audit CSV written by this run.
	AuditPath string `json:"audit_path,omitempty"`
}

// NewSummaryRecord converts an inference summary.
func NewSummaryRecord(s inference.Summary, auditPath string) *SummaryRecord {
	rec := &SummaryRecord{
		Considered: s.Considered,
		WithLogs:   s.WithLogs,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		NoLog:      s.NoLog,
		NoLogIDs:   s.NoLogIDs,
		FailedIDs:  s.FailedIDs,
		AuditPath:  auditPath,
	}
	rec.PercentWithLogs = optional(s.PercentWithLogs())
	rec.PercentSucceeded = optional(s.PercentSucceeded())
	rec.PercentSucceededOfLogged = optional(s.PercentSucceededOfLogged())
	return rec
}

func optional(v float64, err error) *float64 {
	if err != nil {
		return nil
	}
	return &v
}

// RuntimeStatsRecord is the data payload for runtime statistics, in seconds.
type RuntimeStatsRecord struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_seconds"`
	Std    float64 `json:"std_seconds"`
	Min    float64 `json:"min_seconds"`
	P25    float64 `json:"p25_seconds"`
	Median float64 `json:"p50_seconds"`
	P75    float64 `json:"p75_seconds"`
	P90    float64 `json:"p90_seconds"`
	P95    float64 `json:"p95_seconds"`
	Max    float64 `json:"max_seconds"`
	// AuditPath is the audit CSV written by this run.
	AuditPath string `json:"audit_path,omitempty"`
}

// NewRuntimeStatsRecord converts runtime statistics.
func NewRuntimeStatsRecord(st *inference.RuntimeStats) *RuntimeStatsRecord {
	return &RuntimeStatsRecord{
		Count:  st.Count,
		Mean:   st.Mean.Seconds(),
		Std:    st.Std.Seconds(),
		Min:    st.Min.Seconds(),
		P25:    st.P25.Seconds(),
		Median: st.Median.Seconds(),
		P75:    st.P75.Seconds(),
		P90:    st.P90.Seconds(),
		P95:    st.P95.Seconds(),
		Max:    st.Max.Seconds(),
	}
}

// SubmissionRecord is the data payload for a prepared submission.
type SubmissionRecord struct {
	SbatchID   int    `json:"sbatch_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	ScriptPath string `json:"script_path"`
	WallTime   string `json:"wall_time"`
	Jobs       int    `json:"jobs"`
	Parcels    int    `json:"parcels,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Per-job problems are emitted as records rather than failing the whole
// check, so partial results remain usable.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// JobID is the job related to this error, if applicable.
	JobID string `json:"job_id,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeLogUnreadable indicates a log exists but could not be read.
	ErrCodeLogUnreadable = "LOG_UNREADABLE"

	// ErrCodeNotFound indicates an expected file was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

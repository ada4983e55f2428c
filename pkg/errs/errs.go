// Package errs defines the error taxonomy shared by planning and inference.
//
// Planning-time errors (empty job lists, bad partition counts, missing
// database columns, non-positive time constants) abort the whole invocation.
// Inference-time per-job problems are recorded as outcomes instead and never
// surface here, with the exception of MissingLogError which is raised only
// when a caller asks for exactly one log.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these.
var (
	// ErrEmptyJobList indicates a zero-length job list where a non-empty batch is required.
	ErrEmptyJobList = errors.New("empty job list")

	// ErrMissingKeyColumn indicates the job database lacks its required key column.
	ErrMissingKeyColumn = errors.New("missing key column")

	// ErrInvalidPartitionCount indicates a partition count outside [1, n_jobs].
	ErrInvalidPartitionCount = errors.New("invalid partition count")

	// ErrConfiguration indicates a non-positive or otherwise unusable configuration value.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingLog indicates a single requested log file does not exist.
	ErrMissingLog = errors.New("missing log")

	// ErrNoData indicates statistics were requested over an empty set.
	ErrNoData = errors.New("no data")
)

// MissingKeyColumnError reports which required column the database lacks.
type MissingKeyColumnError struct {
	Column string
	Source string
}

func (e *MissingKeyColumnError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("job database %s has no %q column", e.Source, e.Column)
	}
	return fmt.Sprintf("job database has no %q column", e.Column)
}

func (e *MissingKeyColumnError) Unwrap() error {
	return ErrMissingKeyColumn
}

// InvalidPartitionCountError reports a requested partition count and the job count it was checked against.
type InvalidPartitionCountError struct {
	Requested int
	Jobs      int
}

func (e *InvalidPartitionCountError) Error() string {
	return fmt.Sprintf("invalid partition count %d for %d jobs (must be within [1, %d])", e.Requested, e.Jobs, e.Jobs)
}

func (e *InvalidPartitionCountError) Unwrap() error {
	return ErrInvalidPartitionCount
}

// ConfigurationError names the offending configuration field and its value.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "must be positive"
	}
	return fmt.Sprintf("configuration error: %s=%v: %s", e.Field, e.Value, reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// MissingLogError reports the path of a log the caller required to exist.
type MissingLogError struct {
	// Kind is "job" or "sbatch".
	Kind string
	Path string
}

func (e *MissingLogError) Error() string {
	return fmt.Sprintf("no %s log found (expected: %s)", e.Kind, e.Path)
}

func (e *MissingLogError) Unwrap() error {
	return ErrMissingLog
}

// EmptyJobList wraps ErrEmptyJobList with the context in which the list was empty.
func EmptyJobList(context string) error {
	return fmt.Errorf("%s: %w", context, ErrEmptyJobList)
}

// IsEmptyJobList returns true if err is or wraps ErrEmptyJobList.
func IsEmptyJobList(err error) bool {
	return errors.Is(err, ErrEmptyJobList)
}

// IsMissingKeyColumn returns true if err is or wraps ErrMissingKeyColumn.
func IsMissingKeyColumn(err error) bool {
	return errors.Is(err, ErrMissingKeyColumn)
}

// IsInvalidPartitionCount returns true if err is or wraps ErrInvalidPartitionCount.
func IsInvalidPartitionCount(err error) bool {
	return errors.Is(err, ErrInvalidPartitionCount)
}

// IsConfiguration returns true if err is or wraps ErrConfiguration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsMissingLog returns true if err is or wraps ErrMissingLog.
func IsMissingLog(err error) bool {
	return errors.Is(err, ErrMissingLog)
}

// IsNoData returns true if err is or wraps ErrNoData.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

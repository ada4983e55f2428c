// Package walltime estimates how long a batch of serially executed jobs
// takes and how many partitions are needed to keep each one under a ceiling.
//
// All estimates assume a linear cost model: a fixed ramp-up (module loading,
// environment activation) followed by a constant per-job cost.
package walltime

import (
	"fmt"
	"math"
	"time"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
)

// Model holds the cost constants used by the estimators.
type Model struct {
	// RampUp is the fixed overhead paid once per script.
	RampUp time.Duration

	// PerJob is the expected duration of a single job.
	PerJob time.Duration

	// MaxPartition is the longest a single partition may run.
	MaxPartition time.Duration
}

// Validate rejects non-positive cost constants. RampUp may be zero.
func (m Model) Validate() error {
	if m.PerJob <= 0 {
		return &errs.ConfigurationError{Field: "job_time", Value: m.PerJob}
	}
	if m.MaxPartition <= 0 {
		return &errs.ConfigurationError{Field: "max_job_time", Value: m.MaxPartition}
	}
	if m.RampUp < 0 {
		return &errs.ConfigurationError{Field: "job_ramp_up_time", Value: m.RampUp, Reason: "must not be negative"}
	}
	return nil
}

// Estimate returns rampUp + nJobs*perJob. A sum that does not fit in a
// time.Duration is a ConfigurationError on job_time.
func Estimate(nJobs int, rampUp, perJob time.Duration) (time.Duration, error) {
	if nJobs > 0 && perJob > 0 {
		headroom := int64(math.MaxInt64)
		if rampUp > 0 {
			headroom -= int64(rampUp)
		}
		if int64(nJobs) > headroom/int64(perJob) {
			return 0, overflowError(nJobs, perJob)
		}
	}
	return rampUp + time.Duration(nJobs)*perJob, nil
}

// Estimate returns the wall time for nJobs run serially under this model.
func (m Model) Estimate(nJobs int) (time.Duration, error) {
	return Estimate(nJobs, m.RampUp, m.PerJob)
}

// MaxEstimate returns the longest estimate over the given partition sizes.
// A dispatcher's declared time has to cover its slowest member.
func (m Model) MaxEstimate(sizes []int) (time.Duration, error) {
	var longest time.Duration
	for _, n := range sizes {
		d, err := m.Estimate(n)
		if err != nil {
			return 0, err
		}
		longest = max(longest, d)
	}
	return longest, nil
}

func overflowError(nJobs int, perJob time.Duration) error {
	return &errs.ConfigurationError{
		Field:  "job_time",
		Value:  perJob,
		Reason: fmt.Sprintf("%d jobs exceed the representable wall time", nJobs),
	}
}

// MinimumPartitionCount returns ceil(nJobs*perJob / maxPartition).
func MinimumPartitionCount(nJobs int, perJob, maxPartition time.Duration) (int, error) {
	if maxPartition <= 0 {
		return 0, &errs.ConfigurationError{Field: "max_job_time", Value: maxPartition}
	}
	if perJob <= 0 {
		return 0, &errs.ConfigurationError{Field: "job_time", Value: perJob}
	}
	if nJobs <= 0 {
		return 0, errs.EmptyJobList("minimum partition count")
	}

	if int64(nJobs) > math.MaxInt64/int64(perJob) {
		return 0, overflowError(nJobs, perJob)
	}
	total := int64(nJobs) * int64(perJob)
	limit := int64(maxPartition)
	n := total / limit
	if total%limit != 0 {
		n++
	}
	return int(n), nil
}

// MinimumPartitionCount applies the package function with this model's constants.
func (m Model) MinimumPartitionCount(nJobs int) (int, error) {
	return MinimumPartitionCount(nJobs, m.PerJob, m.MaxPartition)
}

// Parts is a duration decomposed with truncating division.
type Parts struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// TotalSeconds re-sums the parts.
func (p Parts) TotalSeconds() int64 {
	return ((p.Days*24+p.Hours)*60+p.Minutes)*60 + p.Seconds
}

// Decompose splits d into days, hours, minutes and whole seconds.
// Sub-second remainders are dropped; negative durations decompose as zero.
func Decompose(d time.Duration) Parts {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	var p Parts
	p.Days, secs = secs/86400, secs%86400
	p.Hours, secs = secs/3600, secs%3600
	p.Minutes, p.Seconds = secs/60, secs%60
	return p
}

// Format renders d in sbatch --time notation: D-HH:MM:SS when d spans at
// least one whole day, HH:MM:SS otherwise.
func Format(d time.Duration) string {
	p := Decompose(d)
	if p.Days == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", p.Hours, p.Minutes, p.Seconds)
	}
	return fmt.Sprintf("%d-%02d:%02d:%02d", p.Days, p.Hours, p.Minutes, p.Seconds)
}

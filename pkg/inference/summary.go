package inference

import (
	"math"
	"sort"
	"time"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
)

// Summary partitions a batch of outcomes into no-log, failed and succeeded.
type Summary struct {
	Considered int `json:"considered"`
	WithLogs   int `json:"with_logs"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	NoLog      int `json:"no_log"`

	// Job id lists are sorted ascending.
	NoLogIDs     []string `json:"no_log_ids,omitempty"`
	FailedIDs    []string `json:"failed_ids,omitempty"`
	SucceededIDs []string `json:"succeeded_ids,omitempty"`
}

// Summarize reduces outcomes to a Summary. The result does not depend on
// the order of outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Considered: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case !o.HasLog:
			s.NoLogIDs = append(s.NoLogIDs, o.JobID)
		case o.Succeeded:
			s.SucceededIDs = append(s.SucceededIDs, o.JobID)
		default:
			s.FailedIDs = append(s.FailedIDs, o.JobID)
		}
	}
	sortJobIDs(s.NoLogIDs)
	sortJobIDs(s.FailedIDs)
	sortJobIDs(s.SucceededIDs)

	s.NoLog = len(s.NoLogIDs)
	s.Failed = len(s.FailedIDs)
	s.Succeeded = len(s.SucceededIDs)
	s.WithLogs = s.Failed + s.Succeeded
	return s
}

// PercentWithLogs is the share of considered jobs that have a log.
func (s Summary) PercentWithLogs() (float64, error) {
	return percent(s.WithLogs, s.Considered, "percentage of jobs with logs")
}

// PercentSucceeded is the share of considered jobs that succeeded.
func (s Summary) PercentSucceeded() (float64, error) {
	return percent(s.Succeeded, s.Considered, "percentage of succeeded jobs")
}

// PercentSucceededOfLogged is the share of jobs with logs that succeeded.
func (s Summary) PercentSucceededOfLogged() (float64, error) {
	return percent(s.Succeeded, s.WithLogs, "percentage of succeeded jobs with logs")
}

func percent(n, of int, what string) (float64, error) {
	if of == 0 {
		return 0, errs.EmptyJobList(what)
	}
	return float64(n) * 100 / float64(of), nil
}

// sortJobIDs orders zero-padded ids numerically (ids wider than five digits sort last).
func sortJobIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
}

// RuntimeStats are descriptive statistics over job runtimes.
type RuntimeStats struct {
	Count  int           `json:"count"`
	Mean   time.Duration `json:"mean_ns"`
	Std    time.Duration `json:"std_ns"`
	Min    time.Duration `json:"min_ns"`
	P25    time.Duration `json:"p25_ns"`
	Median time.Duration `json:"p50_ns"`
	P75    time.Duration `json:"p75_ns"`
	P90    time.Duration `json:"p90_ns"`
	P95    time.Duration `json:"p95_ns"`
	Max    time.Duration `json:"max_ns"`
}

// Runtimes returns the runtimes of succeeded jobs with a known runtime.
func Runtimes(outcomes []Outcome) []time.Duration {
	var out []time.Duration
	for _, o := range outcomes {
		if o.HasLog && o.Succeeded && o.RuntimeKnown {
			out = append(out, o.Runtime)
		}
	}
	return out
}

// ComputeRuntimeStats describes the runtime distribution of outcomes.
//
// Std is the sample standard deviation (zero for a single value).
// Percentiles interpolate linearly between closest ranks.
func ComputeRuntimeStats(outcomes []Outcome) (*RuntimeStats, error) {
	runtimes := Runtimes(outcomes)
	if len(runtimes) == 0 {
		return nil, errs.ErrNoData
	}

	secs := make([]float64, len(runtimes))
	for i, r := range runtimes {
		secs[i] = r.Seconds()
	}
	sort.Float64s(secs)

	var sum float64
	for _, v := range secs {
		sum += v
	}
	mean := sum / float64(len(secs))

	var std float64
	if len(secs) > 1 {
		var sq float64
		for _, v := range secs {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(len(secs)-1))
	}

	return &RuntimeStats{
		Count:  len(secs),
		Mean:   seconds(mean),
		Std:    seconds(std),
		Min:    seconds(secs[0]),
		P25:    seconds(quantile(secs, 0.25)),
		Median: seconds(quantile(secs, 0.50)),
		P75:    seconds(quantile(secs, 0.75)),
		P90:    seconds(quantile(secs, 0.90)),
		P95:    seconds(quantile(secs, 0.95)),
		Max:    seconds(secs[len(secs)-1]),
	}, nil
}

// quantile expects sorted input.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

package inference

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
)

// Outcome is the inferred result for one job.
type Outcome struct {
	OrderID int64  `json:"order_id"`
	JobID   string `json:"job_id"`
	LogPath string `json:"log_path"`

	HasLog bool `json:"has_log"`

	// Succeeded is meaningful only when HasLog is true.
	Succeeded bool `json:"succeeded"`

	// Runtime is meaningful only when RuntimeKnown is true.
	Runtime      time.Duration `json:"runtime_ns,omitempty"`
	RuntimeKnown bool          `json:"runtime_known"`

	// Valid is set only when output validation ran.
	Valid *bool `json:"valid,omitempty"`

	// ReadError describes a log that exists but could not be read.
	ReadError string `json:"read_error,omitempty"`
}

// Failed reports a job with a log that does not indicate success.
func (o Outcome) Failed() bool {
	return o.HasLog && !o.Succeeded
}

// LogLocator maps a job id to its expected log path.
type LogLocator func(jobID string) string

// Config configures an Engine.
type Config struct {
	// Concurrency is the number of logs read in parallel. Default: 8.
	Concurrency int

	// ReadRateLimit caps log opens per second (0 = unlimited). Useful on
	// shared cluster filesystems.
	ReadRateLimit float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{Concurrency: 8}
}

// Engine infers outcomes for batches of jobs.
type Engine struct {
	locate  LogLocator
	parser  LogParser
	noise   []string
	config  Config
	limiter *rate.Limiter
}

// New creates an engine. noise lines are filtered before parser sees them.
func New(locate LogLocator, parser LogParser, noise []string, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	e := &Engine{locate: locate, parser: parser, noise: noise, config: cfg}
	if cfg.ReadRateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.ReadRateLimit), 1)
	}
	return e
}

// Infer classifies every job. Missing or unreadable logs are recorded in
// the outcome and never abort the batch; only context cancellation does.
// Outcomes are returned in input order regardless of read order.
func (e *Engine) Infer(ctx context.Context, jobs []jobdb.Descriptor) ([]Outcome, error) {
	out := make([]Outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for i := range jobs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if e.limiter != nil {
				if err := e.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			out[i] = e.inferOne(jobs[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) inferOne(job jobdb.Descriptor) Outcome {
	o := Outcome{OrderID: job.OrderID, JobID: job.JobID, LogPath: e.locate(job.JobID)}

	lines, err := ReadLogFile(o.LogPath, "job", e.noise)
	if err != nil {
		if errors.Is(err, errs.ErrMissingLog) {
			return o
		}
		o.HasLog = true
		o.ReadError = err.Error()
		return o
	}

	o.HasLog = true
	v := e.parser.Classify(lines)
	o.Succeeded = v.Succeeded
	o.Runtime = v.Runtime
	o.RuntimeKnown = v.Succeeded && v.RuntimeKnown
	return o
}

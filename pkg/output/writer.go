package output

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Emitter is anything that accepts typed slurmhelper records.
type Emitter interface {
	Emit(ctx context.Context, recordType string, payload any) error
	Close() error
}

// JSONLWriter writes one Record envelope per line. It is safe for concurrent
// use; each record reaches the underlying writer as a single, complete line.
type JSONLWriter struct {
	mu     sync.Mutex
	out    io.Writer
	base   Record // RunID and Command stamped on every record
	clock  func() time.Time
	closed bool
	line   bytes.Buffer
}

// NewJSONLWriter returns a writer that stamps runID and command (e.g.
// "check completed") on every record it writes to out.
func NewJSONLWriter(out io.Writer, runID, command string) *JSONLWriter {
	return &JSONLWriter{
		out:   out,
		base:  Record{RunID: runID, Command: command},
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (jw *JSONLWriter) WriteOutcome(ctx context.Context, o *OutcomeRecord) error {
	return jw.Emit(ctx, TypeOutcome, o)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, s *SummaryRecord) error {
	return jw.Emit(ctx, TypeSummary, s)
}

func (jw *JSONLWriter) WriteRuntimeStats(ctx context.Context, st *RuntimeStatsRecord) error {
	return jw.Emit(ctx, TypeRuntimeStats, st)
}

func (jw *JSONLWriter) WriteSubmission(ctx context.Context, sub *SubmissionRecord) error {
	return jw.Emit(ctx, TypeSubmission, sub)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, e *ErrorRecord) error {
	return jw.Emit(ctx, TypeError, e)
}

// Emit wraps payload in an envelope of recordType and writes it. A cancelled
// ctx writes nothing.
func (jw *JSONLWriter) Emit(ctx context.Context, recordType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return ErrWriterClosed
	}

	rec := jw.base
	rec.Type = recordType
	rec.TS = jw.clock()
	rec.Data = data

	jw.line.Reset()
	if err := json.NewEncoder(&jw.line).Encode(rec); err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}
	if err := writeFull(jw.out, jw.line.Bytes()); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// Close stops further writes. The underlying writer stays open.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	jw.closed = true
	jw.mu.Unlock()
	return nil
}

// writeFull loops over short writes; a zero-byte write with no error is
// reported as io.ErrShortWrite.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		switch {
		case err != nil:
			return err
		case n == 0:
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Emitter = (*JSONLWriter)(nil)

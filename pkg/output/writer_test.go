package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcmeyer/slurmhelper/pkg/inference"
)

func decode(t *testing.T, line []byte, payload any) Record {
	t.Helper()
	var record Record
	require.NoError(t, json.Unmarshal(line, &record))
	if payload != nil {
		require.NoError(t, json.Unmarshal(record.Data, payload))
	}
	return record
}

func TestJSONLWriter_Emit(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "check completed")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.clock = func() time.Time { return fixed }

	require.NoError(t, w.Emit(context.Background(), "custom.v1", map[string]int{"n": 3}))

	var payload map[string]int
	record := decode(t, buf.Bytes(), &payload)
	assert.Equal(t, "custom.v1", record.Type)
	assert.Equal(t, "run-123", record.RunID)
	assert.Equal(t, "check completed", record.Command)
	assert.True(t, fixed.Equal(record.TS))
	assert.Equal(t, map[string]int{"n": 3}, payload)
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
}

func TestJSONLWriter_WriteOutcome(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "check completed")

	rec := NewOutcomeRecord(inference.Outcome{
		OrderID:      7,
		JobID:        "00007",
		LogPath:      "/base/logs/jobs/00007.txt",
		HasLog:       true,
		Succeeded:    true,
		RuntimeKnown: true,
		Runtime:      95 * time.Second,
	})
	require.NoError(t, w.WriteOutcome(context.Background(), rec))

	var got OutcomeRecord
	record := decode(t, buf.Bytes(), &got)
	assert.Equal(t, TypeOutcome, record.Type)
	assert.Equal(t, "run-123", record.RunID)
	assert.Equal(t, "check completed", record.Command)
	assert.False(t, record.TS.IsZero())

	assert.Equal(t, int64(7), got.OrderID)
	assert.Equal(t, "00007", got.JobID)
	require.NotNil(t, got.RuntimeSeconds)
	assert.Equal(t, int64(95), *got.RuntimeSeconds)
	assert.Nil(t, got.Valid)
}

func TestNewOutcomeRecord_UnknownRuntimeOmitted(t *testing.T) {
	data, err := json.Marshal(NewOutcomeRecord(inference.Outcome{JobID: "00001", HasLog: true}))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "runtime_seconds")
	assert.NotContains(t, string(data), "valid")
	assert.NotContains(t, string(data), "read_error")
}

func TestJSONLWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "check completed")

	s := inference.Summarize([]inference.Outcome{
		{JobID: "00001"},
		{JobID: "00002", HasLog: true, Succeeded: true},
		{JobID: "00003", HasLog: true, Succeeded: true},
		{JobID: "00004", HasLog: true},
	})
	require.NoError(t, w.WriteSummary(context.Background(), NewSummaryRecord(s, "/base/checks/check_x.csv")))

	var got SummaryRecord
	record := decode(t, buf.Bytes(), &got)
	assert.Equal(t, TypeSummary, record.Type)
	assert.Equal(t, 4, got.Considered)
	assert.Equal(t, 3, got.WithLogs)
	require.NotNil(t, got.PercentSucceeded)
	assert.InDelta(t, 50.0, *got.PercentSucceeded, 1e-9)
	require.NotNil(t, got.PercentSucceededOfLogged)
	assert.InDelta(t, 66.666, *got.PercentSucceededOfLogged, 1e-2)
	assert.Equal(t, []string{"00001"}, got.NoLogIDs)
	assert.Equal(t, []string{"00004"}, got.FailedIDs)
	assert.Equal(t, "/base/checks/check_x.csv", got.AuditPath)
}

func TestNewSummaryRecord_NoLogsOmitsPercentOfLogged(t *testing.T) {
	rec := NewSummaryRecord(inference.Summarize([]inference.Outcome{{JobID: "00001"}}), "")
	assert.NotNil(t, rec.PercentSucceeded)
	assert.Nil(t, rec.PercentSucceededOfLogged)
}

func TestJSONLWriter_WriteRuntimeStats(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "check runtimes")

	st := &inference.RuntimeStats{
		Count:  2,
		Mean:   90 * time.Second,
		Min:    60 * time.Second,
		Median: 90 * time.Second,
		Max:    120 * time.Second,
	}
	require.NoError(t, w.WriteRuntimeStats(context.Background(), NewRuntimeStatsRecord(st)))

	var got RuntimeStatsRecord
	record := decode(t, buf.Bytes(), &got)
	assert.Equal(t, TypeRuntimeStats, record.Type)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 90.0, got.Mean)
	assert.Equal(t, 120.0, got.Max)
}

func TestJSONLWriter_WriteSubmissionAndError(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "prep-array")
	ctx := context.Background()

	require.NoError(t, w.WriteSubmission(ctx, &SubmissionRecord{SbatchID: 4, Name: "sb-0004", Kind: "array", Jobs: 10, Parcels: 3, WallTime: "04:05:00"}))
	require.NoError(t, w.WriteError(ctx, &ErrorRecord{Code: ErrCodeLogUnreadable, Message: "permission denied", JobID: "00002"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var sub SubmissionRecord
	assert.Equal(t, TypeSubmission, decode(t, []byte(lines[0]), &sub).Type)
	assert.Equal(t, 3, sub.Parcels)

	var e ErrorRecord
	assert.Equal(t, TypeError, decode(t, []byte(lines[1]), &e).Type)
	assert.Equal(t, "00002", e.JobID)
}

func TestJSONLWriter_Close(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "x")

	require.NoError(t, w.Close())

	err := w.WriteOutcome(context.Background(), &OutcomeRecord{JobID: "00001"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "check completed")

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range perWorker {
				_ = w.WriteOutcome(context.Background(), &OutcomeRecord{OrderID: int64(i*perWorker + j)})
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, workers*perWorker)
	seen := map[int64]bool{}
	for _, line := range lines {
		var o OutcomeRecord
		decode(t, []byte(line), &o)
		seen[o.OrderID] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestJSONLWriter_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.WriteOutcome(ctx, &OutcomeRecord{JobID: "00001"}), context.Canceled)
	assert.Zero(t, buf.Len())
}

// chunkWriter accepts at most n bytes per call and fails with err once
// set.
type chunkWriter struct {
	buf bytes.Buffer
	n   int
	err error
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.buf.Write(p[:min(len(p), c.n)])
}

func TestJSONLWriter_UnderlyingWriter(t *testing.T) {
	diskFull := errors.New("disk full")
	tests := []struct {
		name    string
		out     *chunkWriter
		wantErr error
	}{
		{name: "short writes are completed", out: &chunkWriter{n: 7}},
		{name: "zero-byte write", out: &chunkWriter{n: 0}, wantErr: io.ErrShortWrite},
		{name: "write error", out: &chunkWriter{n: 64, err: diskFull}, wantErr: diskFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewJSONLWriter(tt.out, "run-123", "x")
			err := w.WriteOutcome(context.Background(), &OutcomeRecord{JobID: "00001", LogPath: "/base/logs/jobs/00001.txt"})
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, TypeOutcome, decode(t, tt.out.buf.Bytes(), nil).Type)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			var we *WriteError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, "write", we.Op)
		})
	}
}

func TestWriteError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &WriteError{Op: "marshal", Err: underlying}

	assert.Equal(t, "output: marshal: underlying error", err.Error())
	assert.ErrorIs(t, err, underlying)
}

func TestErrorRecord_OmitEmpty(t *testing.T) {
	data, err := json.Marshal(ErrorRecord{Code: ErrCodeInternal, Message: "Something went wrong"})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "job_id")
	assert.NotContains(t, string(data), "details")
}

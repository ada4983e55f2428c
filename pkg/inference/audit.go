package inference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AuditTimeFormat is the timestamp layout of audit file names (YYYYMMDD-HHMMSS).
const AuditTimeFormat = "20060102-150405"

// AuditHeader lists the audit CSV columns.
var AuditHeader = []string{
	"order_id", "job_id", "has_log", "succeeded", "runtime_seconds", "valid", "log_path", "read_error",
}

// AuditFileName returns check_<YYYYMMDD-HHMMSS>.csv for t.
func AuditFileName(t time.Time) string {
	return fmt.Sprintf("check_%s.csv", t.Format(AuditTimeFormat))
}

// WriteAuditCSV writes one row per outcome to w.
func WriteAuditCSV(w io.Writer, outcomes []Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AuditHeader); err != nil {
		return err
	}
	for _, o := range outcomes {
		runtime := ""
		if o.RuntimeKnown {
			runtime = strconv.FormatInt(int64(o.Runtime/time.Second), 10)
		}
		valid := ""
		if o.Valid != nil {
			valid = strconv.FormatBool(*o.Valid)
		}
		rec := []string{
			strconv.FormatInt(o.OrderID, 10),
			o.JobID,
			strconv.FormatBool(o.HasLog),
			strconv.FormatBool(o.Succeeded),
			runtime,
			valid,
			o.LogPath,
			o.ReadError,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAudit creates a fresh timestamped audit file in dir and returns its
// path. An existing file is never overwritten; on a same-second collision a
// numeric suffix is added.
func WriteAudit(dir string, now time.Time, outcomes []Outcome) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create checks dir: %w", err)
	}

	base := AuditFileName(now)
	path := filepath.Join(dir, base)
	var f *os.File
	var err error
	for i := 1; i <= 100; i++ {
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil || !errors.Is(err, os.ErrExist) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("check_%s-%d.csv", now.Format(AuditTimeFormat), i))
	}
	if err != nil {
		return "", fmt.Errorf("create audit file: %w", err)
	}

	if err := WriteAuditCSV(f, outcomes); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write audit file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close audit file %s: %w", path, err)
	}
	return path, nil
}

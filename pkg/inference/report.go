package inference

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const reportWidth = 60

// Banner renders a three-line banner padded with pad to reportWidth.
func Banner(title string, pad byte) string {
	line := strings.Repeat(string(pad), reportWidth)
	head := fmt.Sprintf("%c %s ", pad, title)
	if len(head) < reportWidth {
		head += strings.Repeat(string(pad), reportWidth-len(head))
	}
	return line + "\n" + head + "\n" + line
}

// WriteJobIDGrid writes ids as tab-separated rows of cols cells.
func WriteJobIDGrid(w io.Writer, ids []string, cols int) {
	if cols <= 0 {
		cols = 5
	}
	for start := 0; start < len(ids); start += cols {
		end := min(start+cols, len(ids))
		_, _ = fmt.Fprintln(w, strings.Join(ids[start:end], "\t"))
	}
}

// WriteCompletedReport prints the counts and percentages of s. It fails with
// an empty-job-list error when nothing was considered.
func WriteCompletedReport(w io.Writer, s Summary) error {
	pctLogs, err := s.PercentWithLogs()
	if err != nil {
		return err
	}
	pctOK, err := s.PercentSucceeded()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w, Banner("slurmhelper check completed: results", '~'))
	_, _ = fmt.Fprintf(w, "jobs considered: %d\n", s.Considered)
	_, _ = fmt.Fprintf(w, "logs exist in logs/jobs/<job_id>.txt: %d (%.1f%% of considered)\n", s.WithLogs, pctLogs)
	_, _ = fmt.Fprintf(w, "logs indicate success: %d\n", s.Succeeded)
	_, _ = fmt.Fprintf(w, "    (%.1f%% of considered);\n", pctOK)
	if pctOfLogged, err := s.PercentSucceededOfLogged(); err == nil {
		_, _ = fmt.Fprintf(w, "    (%.1f%% of considered w/ existing logs);\n", pctOfLogged)
	} else {
		_, _ = fmt.Fprintln(w, "    (n/a of considered w/ existing logs: no logs found);")
	}

	if s.NoLog > 0 {
		_, _ = fmt.Fprintf(w, "\njobs without logfiles (n = %d)\n", s.NoLog)
		WriteJobIDGrid(w, s.NoLogIDs, 5)
	}
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(w, "\nfailed jobs (n = %d):\n", s.Failed)
		WriteJobIDGrid(w, s.FailedIDs, 5)
	}
	return nil
}

// WriteRuntimeStats prints st as a two-column table.
func WriteRuntimeStats(w io.Writer, st *RuntimeStats) {
	rows := []struct {
		label string
		value string
	}{
		{"count", fmt.Sprintf("%d", st.Count)},
		{"mean", st.Mean.String()},
		{"std", st.Std.String()},
		{"min", st.Min.String()},
		{"25%", st.P25.String()},
		{"50%", st.Median.String()},
		{"75%", st.P75.String()},
		{"90%", st.P90.String()},
		{"95%", st.P95.String()},
		{"max", st.Max.String()},
	}
	_, _ = fmt.Fprintln(w, "runtime")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%-6s %s\n", r.label, r.value)
	}
}

// LogView controls PrettyPrintLog.
type LogView struct {
	// Title labels the banner, e.g. "Job unit log file".
	Title string

	// Head and Tail bound the excerpt when Full is false.
	Head int
	Tail int
	Full bool
}

// DefaultLogView shows the first and last five lines.
func DefaultLogView(title string) LogView {
	return LogView{Title: title, Head: 5, Tail: 5}
}

// PrettyPrintLog prints lines of the log at path framed by a header and
// a line-count footer.
func PrettyPrintLog(w io.Writer, path string, lines []string, view LogView) {
	rule := strings.Repeat("=", reportWidth)
	title := view.Title
	if title == "" {
		title = "Log file"
	}
	head := fmt.Sprintf("= %s: %s ", title, filepath.Base(path))
	if len(head) < reportWidth {
		head += strings.Repeat("=", reportWidth-len(head))
	}
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintln(w, head)
	_, _ = fmt.Fprintln(w, rule)

	if view.Full || len(lines) <= view.Head+view.Tail {
		for _, l := range lines {
			_, _ = fmt.Fprintln(w, l)
		}
	} else {
		for _, l := range lines[:view.Head] {
			_, _ = fmt.Fprintln(w, l)
		}
		_, _ = fmt.Fprintln(w, "...\n...\n...")
		for _, l := range lines[len(lines)-view.Tail:] {
			_, _ = fmt.Fprintln(w, l)
		}
	}

	count := fmt.Sprintf("-(%06d lines)-", len(lines))
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintln(w, strings.Repeat("-", max(0, reportWidth-len(count)))+count)
}

package jobdb

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
)

// Descriptor is one resolved job.
//
// OrderID, JobID and RunID are the fixed core; Attrs carries every other
// column and global parameter through untouched. Descriptors are built once
// per invocation and must not be mutated afterwards.
type Descriptor struct {
	OrderID int64
	JobID   string

	// RunID is set only when the database has a run column with a value.
	RunID string

	Attrs map[string]string
}

// String returns the formatted job id.
func (d Descriptor) String() string {
	return d.JobID
}

// Fields returns every attribute plus the core fields, for templating.
// Core fields win over attributes of the same name.
func (d Descriptor) Fields() map[string]string {
	out := make(map[string]string, len(d.Attrs)+3)
	for k, v := range d.Attrs {
		out[k] = v
	}
	out[KeyColumn] = strconv.FormatInt(d.OrderID, 10)
	out["job_id"] = d.JobID
	if d.RunID != "" {
		out["run_id"] = d.RunID
	}
	return out
}

// FormatJobID renders an order id as a zero-padded job id of width 5.
// Wider ids are never truncated.
func FormatJobID(orderID int64) string {
	return fmt.Sprintf("%05d", orderID)
}

// FormatRunID renders a run number zero-padded to width 2.
func FormatRunID(run int64) string {
	return fmt.Sprintf("%02d", run)
}

// BuildOptions restricts and tunes Build.
type BuildOptions struct {
	// Select restricts the result to these order ids. Nil selects every row.
	Select []int64

	// AllowEmpty permits an empty result.
	AllowEmpty bool
}

// Build merges each row with the global parameters (row values win) and
// derives job_id and run_id. Output follows database order.
func Build(t *Table, globals map[string]any, opts BuildOptions) ([]Descriptor, error) {
	if t == nil || !t.HasColumn(KeyColumn) {
		source := ""
		if t != nil {
			source = t.Source
		}
		return nil, &errs.MissingKeyColumnError{Column: KeyColumn, Source: source}
	}

	var selected map[int64]bool
	if opts.Select != nil {
		selected = make(map[int64]bool, len(opts.Select))
		for _, id := range opts.Select {
			selected[id] = true
		}
	}

	globalStrs := StringifyGlobals(globals)
	hasRun := t.HasColumn(RunColumn)
	seen := make(map[int64]int, len(t.Rows))
	out := make([]Descriptor, 0, len(t.Rows))

	for i, row := range t.Rows {
		orderID, err := parseInt(row[KeyColumn])
		if err != nil {
			return nil, rowError(t.Source, i, fmt.Errorf("%s: %w", KeyColumn, err))
		}
		if orderID < 0 {
			return nil, rowError(t.Source, i, fmt.Errorf("%s must be non-negative, got %d", KeyColumn, orderID))
		}
		if prev, dup := seen[orderID]; dup {
			return nil, rowError(t.Source, i, fmt.Errorf("duplicate %s %d (first seen in row %d)", KeyColumn, orderID, prev+1))
		}
		seen[orderID] = i

		if selected != nil && !selected[orderID] {
			continue
		}

		attrs := make(map[string]string, len(globalStrs)+len(row))
		for k, v := range globalStrs {
			attrs[k] = v
		}
		for k, v := range row {
			attrs[k] = v
		}

		d := Descriptor{OrderID: orderID, JobID: FormatJobID(orderID), Attrs: attrs}
		if hasRun && row[RunColumn] != "" {
			run, err := parseInt(row[RunColumn])
			if err != nil {
				return nil, rowError(t.Source, i, fmt.Errorf("%s: %w", RunColumn, err))
			}
			d.RunID = FormatRunID(run)
		}
		out = append(out, d)
	}

	if len(out) == 0 && !opts.AllowEmpty {
		if selected != nil {
			return nil, errs.EmptyJobList(fmt.Sprintf("none of the %d selected ids exist in %s", len(selected), t.Source))
		}
		return nil, errs.EmptyJobList(fmt.Sprintf("job database %s has no rows", t.Source))
	}
	return out, nil
}

// MissingIDs returns the selected order ids with no descriptor, sorted.
func MissingIDs(selected []int64, built []Descriptor) []int64 {
	have := make(map[int64]bool, len(built))
	for _, d := range built {
		have[d.OrderID] = true
	}
	var missing []int64
	for _, id := range selected {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// OrderIDs returns the order ids of descriptors, in order.
func OrderIDs(ds []Descriptor) []int64 {
	out := make([]int64, len(ds))
	for i, d := range ds {
		out[i] = d.OrderID
	}
	return out
}

// StringifyGlobals renders global parameter values for templating.
func StringifyGlobals(globals map[string]any) map[string]string {
	out := make(map[string]string, len(globals))
	for k, v := range globals {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out
}

// parseInt accepts integers and integral floats ("5", "5.0").
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("value is empty")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}

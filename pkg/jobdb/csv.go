package jobdb

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVSource reads a job database from a CSV file with a header row.
type CSVSource struct {
	Path string
}

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job database does not exist: %s", s.Path)
		}
		return nil, fmt.Errorf("open job database: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(ctx, f, s.Path)
}

// ReadCSV parses CSV with a header row from r.
func ReadCSV(ctx context.Context, r io.Reader, source string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("job database %s is empty", source)
		}
		return nil, fmt.Errorf("read header of %s: %w", source, err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &Table{Source: source, Columns: columns}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowError(source, i, err)
		}
		row := make(Row, len(columns))
		for j, col := range columns {
			row[col] = strings.TrimSpace(rec[j])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

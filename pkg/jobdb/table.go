// Package jobdb reads the tabular job database and turns its rows into
// fully resolved job descriptors.
//
// The database is the durable source of truth for a working tree: one row
// per job, keyed by a unique non-negative integer order_id column. Two
// sources are supported, a CSV file (the default db.csv) and a table in a
// SQLite database.
package jobdb

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// KeyColumn is the required unique key column.
const KeyColumn = "order_id"

// RunColumn is the optional run number column; when present run_id is derived.
const RunColumn = "run"

// Row maps column name to cell value. Empty cells are empty strings.
type Row map[string]string

// Table is a fully loaded job database.
type Table struct {
	// Source names where the table came from, for error messages.
	Source  string
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Source loads a job database.
type Source interface {
	Load(ctx context.Context) (*Table, error)
}

// Open picks a source for path: .db/.sqlite/.sqlite3 files open as SQLite
// (reading table), anything else as CSV.
func Open(path, table string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return &SQLiteSource{Path: path, Table: table}
	default:
		return &CSVSource{Path: path}
	}
}

func rowError(source string, index int, err error) error {
	return fmt.Errorf("%s row %d: %w", source, index+1, err)
}

package jobdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultTable is the table read when SQLiteSource.Table is empty.
const DefaultTable = "jobs"

// SQLiteSource reads a job database from a table of a SQLite file.
type SQLiteSource struct {
	Path  string
	Table string
}

// Load implements Source. The database is opened read-only.
func (s *SQLiteSource) Load(ctx context.Context) (*Table, error) {
	if _, err := os.Stat(s.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job database does not exist: %s", s.Path)
		}
		return nil, fmt.Errorf("stat job database: %w", err)
	}

	table := strings.TrimSpace(s.Table)
	if table == "" {
		table = DefaultTable
	}
	if !validTableName(table) {
		return nil, fmt.Errorf("invalid job table name %q", table)
	}

	db, err := sql.Open("sqlite", "file:"+s.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `SELECT * FROM "`+table+`"`)
	if err != nil {
		return nil, fmt.Errorf("query job table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read job table columns: %w", err)
	}

	source := s.Path + ":" + table
	t := &Table{Source: source, Columns: columns}
	cells := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for i := 0; rows.Next(); i++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, rowError(source, i, err)
		}
		row := make(Row, len(columns))
		for j, col := range columns {
			row[col] = cellString(cells[j])
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job table: %w", err)
	}
	return t, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func validTableName(name string) bool {
	for i, c := range name {
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return name != ""
}

package jobdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
)

const sampleCSV = `sub,ses,task,run,order_id
NIDA01,1,rest,1,1
NIDA01,1,rest,2,2
NIDA02,1,rest,1,3
NIDA02,2,nback,,7
`

func loadSample(t *testing.T) *Table {
	t.Helper()
	table, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV), "db.csv")
	require.NoError(t, err)
	return table
}

func TestFormatJobID(t *testing.T) {
	assert.Equal(t, "00007", FormatJobID(7))
	assert.Equal(t, "00000", FormatJobID(0))
	assert.Equal(t, "100000", FormatJobID(100000))
	assert.Equal(t, "03", FormatRunID(3))
}

func TestReadCSV(t *testing.T) {
	table := loadSample(t)
	assert.Equal(t, []string{"sub", "ses", "task", "run", "order_id"}, table.Columns)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, "NIDA02", table.Rows[3]["sub"])
	assert.Equal(t, "", table.Rows[3]["run"])
}

func TestReadCSV_ByteOrderMark(t *testing.T) {
	table, err := ReadCSV(context.Background(), strings.NewReader("\ufefforder_id,sub\n4,A\n"), "db.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "sub"}, table.Columns)
	assert.True(t, table.HasColumn("order_id"))
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "4", table.Rows[0]["order_id"])

	jobs, err := Build(table, nil, BuildOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "00004", jobs[0].JobID)
}

func TestCSVSource_Missing(t *testing.T) {
	_, err := (&CSVSource{Path: filepath.Join(t.TempDir(), "db.csv")}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestBuild(t *testing.T) {
	table := loadSample(t)
	globals := map[string]any{"conda_env": "/envs/fmri", "ses": "global-ses", "threads": 4}

	jobs, err := Build(table, globals, BuildOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 4)

	first := jobs[0]
	assert.Equal(t, int64(1), first.OrderID)
	assert.Equal(t, "00001", first.JobID)
	assert.Equal(t, "01", first.RunID)
	assert.Equal(t, "/envs/fmri", first.Attrs["conda_env"])
	assert.Equal(t, "4", first.Attrs["threads"])
	// row values override globals
	assert.Equal(t, "1", first.Attrs["ses"])

	fields := first.Fields()
	assert.Equal(t, "00001", fields["job_id"])
	assert.Equal(t, "01", fields["run_id"])
	assert.Equal(t, "1", fields["order_id"])

	last := jobs[3]
	assert.Equal(t, "00007", last.JobID)
	assert.Empty(t, last.RunID)
	_, hasRunID := last.Fields()["run_id"]
	assert.False(t, hasRunID)
}

func TestBuild_Select(t *testing.T) {
	table := loadSample(t)

	jobs, err := Build(table, nil, BuildOptions{Select: []int64{7, 2, 99}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 7}, OrderIDs(jobs))
	assert.Equal(t, []int64{99}, MissingIDs([]int64{7, 2, 99}, jobs))

	_, err = Build(table, nil, BuildOptions{Select: []int64{42}})
	assert.True(t, errs.IsEmptyJobList(err))

	jobs, err = Build(table, nil, BuildOptions{Select: []int64{42}, AllowEmpty: true})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestBuild_NoRunColumn(t *testing.T) {
	table, err := ReadCSV(context.Background(), strings.NewReader("order_id,sub\n5,A\n"), "db.csv")
	require.NoError(t, err)

	jobs, err := Build(table, nil, BuildOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Empty(t, jobs[0].RunID)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		csv   string
		check func(t *testing.T, err error)
	}{
		{
			name: "missing key column",
			csv:  "sub,run\nA,1\n",
			check: func(t *testing.T, err error) {
				assert.True(t, errs.IsMissingKeyColumn(err))
				assert.Contains(t, err.Error(), "order_id")
			},
		},
		{
			name: "duplicate key",
			csv:  "order_id\n1\n1\n",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "duplicate order_id 1")
			},
		},
		{
			name: "negative key",
			csv:  "order_id\n-1\n",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "non-negative")
			},
		},
		{
			name: "non integer key",
			csv:  "order_id\n1.5\n",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "not an integer")
			},
		},
		{
			name: "no rows",
			csv:  "order_id\n",
			check: func(t *testing.T, err error) {
				assert.True(t, errs.IsEmptyJobList(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadCSV(context.Background(), strings.NewReader(tt.csv), "db.csv")
			require.NoError(t, err)
			_, err = Build(table, nil, BuildOptions{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestBuild_IntegralFloatKeys(t *testing.T) {
	table, err := ReadCSV(context.Background(), strings.NewReader("order_id,run\n3.0,2.0\n"), "db.csv")
	require.NoError(t, err)
	jobs, err := Build(table, nil, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, "00003", jobs[0].JobID)
	assert.Equal(t, "02", jobs[0].RunID)
}

func TestSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE jobs (order_id INTEGER PRIMARY KEY, sub TEXT, run INTEGER, weight REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO jobs (order_id, sub, run, weight) VALUES (1, 'A', 1, 0.5), (2, 'B', NULL, 2)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := Open(path, "")
	require.IsType(t, &SQLiteSource{}, src)

	table, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "sub", "run", "weight"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "0.5", table.Rows[0]["weight"])
	assert.Equal(t, "", table.Rows[1]["run"])

	jobs, err := Build(table, nil, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, "01", jobs[0].RunID)
	assert.Empty(t, jobs[1].RunID)
}

func TestSQLiteSource_Errors(t *testing.T) {
	_, err := (&SQLiteSource{Path: filepath.Join(t.TempDir(), "missing.db")}).Load(context.Background())
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "x.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err = (&SQLiteSource{Path: path, Table: "jobs; DROP TABLE x"}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job table name")
}

func TestOpen_CSVDefault(t *testing.T) {
	assert.IsType(t, &CSVSource{}, Open("/tmp/db.csv", ""))
	assert.IsType(t, &CSVSource{}, Open("/tmp/db", ""))
}

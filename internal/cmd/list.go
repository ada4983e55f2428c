package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/fcmeyer/slurmhelper/pkg/layout"
	"github.com/fcmeyer/slurmhelper/pkg/script"
	"github.com/fcmeyer/slurmhelper/pkg/submissions"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List prepared submissions",
	Long: `List the submission scripts in scripts/slurm, grouped by sbatch id, together
with what the submission registry recorded about them.

Examples:
  slurmhelper list
  slurmhelper list --base /scratch/study`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// listRow merges a prepared script with its registry record.
type listRow struct {
	id       int
	prepared *script.Prepared
	record   *submissions.Record
}

func runList(cmd *cobra.Command, args []string) error {
	dirs, err := layout.FromBase(currentConfig().Paths.Base)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid base directory", err)
	}

	prepared, err := script.ListPrepared(dirs.SlurmScripts)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list submission scripts", err)
	}
	records, err := submissions.NewStore(dirs.SlurmScripts).List()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read submission registry", err)
	}

	byID := map[int]*listRow{}
	row := func(id int) *listRow {
		r, ok := byID[id]
		if !ok {
			r = &listRow{id: id}
			byID[id] = r
		}
		return r
	}
	for i := range prepared {
		row(prepared[i].SbatchID).prepared = &prepared[i]
	}
	for i := range records {
		row(records[i].SbatchID).record = &records[i]
	}
	if len(byID) == 0 {
		fmt.Printf("no submissions prepared in %s\n", dirs.SlurmScripts)
		return nil
	}

	rows := make([]*listRow, 0, len(byID))
	for _, r := range byID {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tKIND\tELEMENTS\tJOBS\tWALL TIME\tCREATED")
	for _, r := range rows {
		kind, elements, jobs, wall, created := "-", "-", "-", "-", "-"
		if p := r.prepared; p != nil {
			kind = string(submissions.KindSerial)
			if p.IsArray() {
				kind = string(submissions.KindArray)
				elements = strconv.Itoa(len(p.Elements))
			}
			if p.Path == "" {
				kind += " (no dispatcher)"
			}
		}
		if rec := r.record; rec != nil {
			kind = string(rec.Kind)
			jobs = strconv.Itoa(len(rec.JobIDs))
			wall = rec.WallTime
			if !rec.CreatedAt.IsZero() {
				created = rec.CreatedAt.Local().Format("2006-01-02 15:04")
			}
			if r.prepared == nil {
				kind += " (scripts missing)"
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", script.Name(r.id), kind, elements, jobs, wall, created)
	}
	return tw.Flush()
}

package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	// Version works without a config or working tree.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run:               runVersion,
}

var versionShort bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

func runVersion(cmd *cobra.Command, args []string) {
	if versionShort {
		fmt.Println(versionInfo.Version)
		return
	}
	deps := crucible.GetVersion()
	fmt.Printf("slurmhelper %s\n", versionInfo.Version)
	fmt.Printf("  commit:     %s\n", versionInfo.Commit)
	fmt.Printf("  built:      %s\n", versionInfo.BuildDate)
	fmt.Printf("  go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  gofulmen:   %s\n", deps.Gofulmen)
	fmt.Printf("  crucible:   %s\n", deps.Crucible)
}

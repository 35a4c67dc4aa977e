package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rowsync-core/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show version information including build time and git commit.

Example:
  syncd version`,
	Args: cobra.NoArgs,
	Run:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "rowsync syncd %s\n", version.GetVersion())
	fmt.Fprintf(w, "Built %s\n", version.BuildTime)
	fmt.Fprintln(w)
}

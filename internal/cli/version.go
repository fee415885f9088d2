package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at link time with -ldflags "-X".
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Go        string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the logshield build",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{Version, GitCommit, BuildDate, runtime.Version()}
		out := cmd.OutOrStdout()
		if outputFmt == formatJSON {
			return writeJSON(out, info)
		}
		fmt.Fprintf(out, "logshield %s (%s, built %s, %s)\n", info.Version, info.Commit, info.BuildDate, info.Go)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

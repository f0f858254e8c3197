package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s\n", app, version)

		if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		fmt.Printf("go: %s\n", info.GoVersion)
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" || s.Key == "vcs.time" {
				fmt.Printf("%s: %s\n", s.Key, s.Value)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolP("verbose", "v", false, "also print the go version and vcs revision")
}

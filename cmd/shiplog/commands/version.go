package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiplog/shiplog/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shiplog version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.AppName, version.Current)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

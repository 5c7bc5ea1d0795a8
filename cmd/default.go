package cmd

import (
	"github.com/spf13/cobra"
)

// defaultCmd represents the command that runs when no subcommand is specified
var defaultCmd = &cobra.Command{
	Use:    "default",
	Short:  "Default command when no subcommand is provided",
	Long:   `Runs the sync command by default for backwards compatibility.`,
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		runSync(cmd)
	},
}

func init() {
	rootCmd.AddCommand(defaultCmd)
}

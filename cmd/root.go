package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command; running it without a subcommand runs a
// full synchronization.
var rootCmd = &cobra.Command{
	Use:   "modsync",
	Short: "Synchronizes a declared Minecraft mod catalog against Modrinth and CurseForge",
	Long: `modsync keeps a local mods directory in step with a declared catalog.
Mods are ingested from a mods-list file into a local database, then each
enabled record is reconciled against its registry: the latest compatible
version is resolved, downloaded, verified and written to the mods directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSync(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("dry-run", false, "Resolve and report without touching the disk or the database")
	rootCmd.PersistentFlags().String("mods-list", "", "Path to the mods-list file (overrides MODS_LIST_FILE)")
}

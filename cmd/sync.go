package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modsync/config"
	"modsync/logger"
	"modsync/sync"
	"modsync/ui"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconciles every enabled mod against its registry",
	Long: `Resolves the latest compatible version of every enabled mod for the
configured Minecraft version and loader, then downloads, verifies and
installs what changed. Custom-source mods are reported for manual download.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSync(cmd)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command) {
	cfg, store, clients := bootstrap(".")
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		cfg.DryRun = true
	}
	if flagFile, _ := cmd.Flags().GetString("mods-list"); flagFile != "" {
		cfg.ModsListFile = flagFile
	}

	mods, err := store.Enabled(cfg.MinecraftVersion, cfg.Loader)
	if err != nil {
		logger.Log.Fatalw("Failed to load enabled mods", zap.Error(err))
	}
	if len(mods) == 0 {
		logger.Log.Infof("No enabled mods for Minecraft %s (%s). Run ingest first.",
			cfg.MinecraftVersion, cfg.Loader.Name())
		return
	}

	logger.Log.Infof("Synchronizing %d mods for Minecraft %s (%s)...",
		len(mods), cfg.MinecraftVersion, cfg.Loader.Name())
	if cfg.DryRun {
		logger.Log.Info("Dry run: nothing will be written.")
	}

	engine := sync.NewEngine(store, clients, cfg.ModsDir, cfg.DryRun, logger.Log)
	outcomes, err := engine.Synchronize(context.Background(), mods)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Log.Fatalw("Synchronization aborted", zap.String("reason", cfgErr.Reason))
		}
		logger.Log.Fatalw("Synchronization failed", zap.Error(err))
	}

	fatal := renderOutcomes(outcomes)

	if engine.Changed() {
		if cfg.ModsListFile != "" {
			fmt.Println(ui.Warn(fmt.Sprintf("Catalog changed during sync; %s is now out of date. Run export to refresh it.", cfg.ModsListFile)))
		} else {
			fmt.Println(ui.Warn("Catalog changed during sync. Run export to save an up-to-date mods list."))
		}
	}

	if fatal > 0 {
		os.Exit(1)
	}
}

// renderOutcomes prints one line per mod plus a summary, and returns
// the number of fatal outcomes.
func renderOutcomes(outcomes []sync.Outcome) int {
	var committed, upToDate, manual, missing, mismatched, fatal int

	fmt.Println(ui.Header("Synchronization results:"))
	for _, outcome := range outcomes {
		name := outcome.Mod.DisplayName()
		switch outcome.Status {
		case sync.StatusCommitted:
			committed++
			fmt.Printf("  %s %s (%s)\n", ui.Success("updated"), name, outcome.CurrentVersion)
		case sync.StatusUpToDate:
			upToDate++
			fmt.Printf("  %s %s (%s)\n", ui.Muted("up to date"), name, outcome.CurrentVersion)
		case sync.StatusManualDownloadRequired:
			manual++
			fmt.Printf("  %s %s: download manually from %s\n", ui.Warn("manual"), name, outcome.URL)
		case sync.StatusNoCompatibleVersion:
			missing++
			fmt.Printf("  %s %s: %v\n", ui.Warn("no version"), name, outcome.Err)
		case sync.StatusHashMismatch:
			mismatched++
			fmt.Printf("  %s %s: %v\n", ui.Error("hash mismatch"), name, outcome.Err)
		default:
			fatal++
			fmt.Printf("  %s %s: %v\n", ui.Error("failed"), name, outcome.Err)
		}
	}

	fmt.Printf("\n%d updated, %d up to date, %d manual, %d without a compatible version, %d hash mismatches, %d failed.\n",
		committed, upToDate, manual, missing, mismatched, fatal)
	return fatal
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modsync/logger"
	"modsync/modlist"
	"modsync/ui"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Parses a mods-list file into the catalog database",
	Long: `Reads a mods-list file (plain text, CSV-style rows or JSON in any of
the supported shapes), validates every entry and commits them to the
catalog in a single transaction. A malformed list changes nothing.

Without an argument the file named by MODS_LIST_FILE is used, falling
back to the first of ` + fmt.Sprint(defaultListNames) + ` found in the
working directory.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runIngest(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	cfg, store, _ := bootstrap(".")
	if flagFile, _ := cmd.Flags().GetString("mods-list"); flagFile != "" {
		cfg.ModsListFile = flagFile
	}

	var listFile string
	if len(args) == 1 {
		listFile = args[0]
	} else {
		var ok bool
		listFile, ok = resolveListFile(cfg, ".")
		if !ok {
			logger.Log.Fatal("No mods-list file given, MODS_LIST_FILE is not set and no default list file was found.")
		}
	}

	raw, err := os.ReadFile(listFile)
	if err != nil {
		logger.Log.Fatalw("Failed to read mods list", zap.String("file", listFile), zap.Error(err))
	}

	before, err := store.Count()
	if err != nil {
		logger.Log.Fatalw("Failed to count catalog records", zap.Error(err))
	}

	parser := modlist.NewParser(store, cfg.MinecraftVersion, cfg.Loader)
	if err := parser.Ingest(string(raw)); err != nil {
		logger.Log.Fatalw("Failed to ingest mods list", zap.String("file", listFile), zap.Error(err))
	}

	after, err := store.Count()
	if err != nil {
		logger.Log.Fatalw("Failed to count catalog records", zap.Error(err))
	}

	logger.Log.Infow("Mods list ingested",
		zap.String("file", listFile),
		zap.Int64("new_records", after-before),
		zap.Int64("total_records", after),
	)
	fmt.Println(ui.Success(fmt.Sprintf("Ingested %s: %d new records (%d total).", listFile, after-before, after)))
}

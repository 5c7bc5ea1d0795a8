package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modsync/db"
	"modsync/logger"
	"modsync/ui"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Writes the catalog back out as a mods-list file",
	Long: `Serializes the catalog to a mods-list file that ingest accepts again.
A catalog of only simple mods becomes a plain list with one identifier
per line; anything richer becomes a JSON dump carrying every field.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runExport(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	cfg, store, _ := bootstrap(".")
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		cfg.DryRun = true
	}
	if flagFile, _ := cmd.Flags().GetString("mods-list"); flagFile != "" {
		cfg.ModsListFile = flagFile
	}

	var listFile string
	switch {
	case len(args) == 1:
		listFile = args[0]
	case cfg.ModsListFile != "":
		listFile = cfg.ModsListFile
	default:
		listFile = defaultListNames[0]
	}

	payload, err := renderCatalog(store)
	if err != nil {
		logger.Log.Fatalw("Failed to export catalog", zap.Error(err))
	}

	if cfg.DryRun {
		logger.Log.Infow("Dry run: not writing export", zap.String("file", listFile))
		fmt.Print(payload)
		return
	}

	if err := os.WriteFile(listFile, []byte(payload), 0644); err != nil {
		logger.Log.Fatalw("Failed to write mods list", zap.String("file", listFile), zap.Error(err))
	}
	logger.Log.Infow("Catalog exported", zap.String("file", listFile))
	fmt.Println(ui.Success(fmt.Sprintf("Exported catalog to %s.", listFile)))
}

// renderCatalog serializes all records: the compact one-line form when
// the catalog holds nothing but simple mods, a JSON dump otherwise.
func renderCatalog(store *db.Store) (string, error) {
	total, err := store.Count()
	if err != nil {
		return "", err
	}
	simple, err := store.CountByKind(db.KindSimple)
	if err != nil {
		return "", err
	}

	// One identifier per line; the ingestion text path reads this back
	// as bare identifiers.
	if total > 0 && simple == total {
		mods, err := store.All()
		if err != nil {
			return "", err
		}
		identifiers := make([]string, len(mods))
		for i := range mods {
			identifiers[i] = mods[i].UniqueIdentifier
		}
		return strings.Join(identifiers, "\n") + "\n", nil
	}

	entries, err := store.Dump()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

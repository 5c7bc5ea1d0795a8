package cmd

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"modsync/config"
	"modsync/curseforge"
	"modsync/db"
	"modsync/logger"
	"modsync/modrinth"
	"modsync/registry"
)

// httpTimeout bounds every registry and download request.
const httpTimeout = 30 * time.Second

// defaultListNames are probed, in order, when MODS_LIST_FILE is not set.
var defaultListNames = []string{
	"mods.json", "mods.csv", "mods.txt",
	"mod-list.json", "mod-list.csv", "mod-list.txt",
	"mod_list.json", "mod_list.csv", "mod_list.txt",
}

// bootstrap handles shared initialization logic for commands: load and
// validate configuration, open the catalog database and build the
// registry clients.
func bootstrap(path string) (config.Config, *db.Store, map[db.APISource]registry.Client) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Log.Fatalw("Failed to load configuration", zap.Error(err))
	}

	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log.Fatalw("Failed to open catalog database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))

	clients, err := buildClients(cfg, &http.Client{Timeout: httpTimeout})
	if err != nil {
		logger.Log.Fatalw("Failed to create registry clients", zap.Error(err))
	}

	return cfg, store, clients
}

// buildClients constructs the registry clients over one shared HTTP
// client, so every sync task draws from the same connection pool.
func buildClients(cfg config.Config, httpClient *http.Client) (map[db.APISource]registry.Client, error) {
	clients := make(map[db.APISource]registry.Client)

	modrinthClient, err := modrinth.NewClient(cfg.UserAgent, httpClient)
	if err != nil {
		return nil, err
	}
	clients[db.SourceModrinth] = modrinthClient

	// The CurseForge client needs an API key. Records sourced from
	// CurseForge fail the engine's pre-flight check when it is missing.
	if cfg.CurseforgeAPIKey != "" {
		curseforgeClient, err := curseforge.NewClient(cfg.CurseforgeAPIKey, cfg.UserAgent, httpClient)
		if err != nil {
			return nil, err
		}
		clients[db.SourceCurseForge] = curseforgeClient
	}

	return clients, nil
}

// resolveListFile returns the mods-list path to read: the configured
// one when set, otherwise the first default name found next to the
// working directory.
func resolveListFile(cfg config.Config, dir string) (string, bool) {
	if cfg.ModsListFile != "" {
		return cfg.ModsListFile, true
	}
	for _, name := range defaultListNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

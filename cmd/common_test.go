package cmd

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modsync/config"
	"modsync/curseforge"
	"modsync/db"
	"modsync/mcversion"
	"modsync/modrinth"
	"modsync/sync"
)

func TestResolveListFile(t *testing.T) {
	t.Run("configured path wins", func(t *testing.T) {
		cfg := config.Config{ModsListFile: "custom-list.json"}
		listFile, ok := resolveListFile(cfg, t.TempDir())
		if !ok || listFile != "custom-list.json" {
			t.Errorf("Expected the configured path, got %q (%v)", listFile, ok)
		}
	})

	t.Run("probes default names in order", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"mods.txt", "mod-list.json"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("Sodium"), 0644); err != nil {
				t.Fatalf("Failed to seed %s: %v", name, err)
			}
		}
		listFile, ok := resolveListFile(config.Config{}, dir)
		if !ok || listFile != filepath.Join(dir, "mods.txt") {
			t.Errorf("Expected mods.txt to win the probe, got %q (%v)", listFile, ok)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		if _, ok := resolveListFile(config.Config{}, t.TempDir()); ok {
			t.Error("Expected no list file in an empty directory")
		}
	})
}

func TestRenderCatalog(t *testing.T) {
	openStore := func(t *testing.T) *db.Store {
		t.Helper()
		store, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
		if err != nil {
			t.Fatalf("Failed to open test store: %v", err)
		}
		return store
	}

	t.Run("simple-only catalog is identifiers per line", func(t *testing.T) {
		store := openStore(t)
		for _, identifier := range []string{"Sodium", "Lithium"} {
			mod, err := db.NewSimpleMod("1.20.4", mcversion.Fabric, identifier)
			if err != nil {
				t.Fatalf("Failed to build mod: %v", err)
			}
			if _, _, err := store.GetOrCreate(mod); err != nil {
				t.Fatalf("GetOrCreate failed: %v", err)
			}
		}

		payload, err := renderCatalog(store)
		if err != nil {
			t.Fatalf("renderCatalog failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(payload), "\n")
		if len(lines) != 2 {
			t.Errorf("Expected 2 lines, got %q", payload)
		}
	})

	t.Run("mixed catalog is a json dump", func(t *testing.T) {
		store := openStore(t)
		simple, err := db.NewSimpleMod("1.20.4", mcversion.Fabric, "Sodium")
		if err != nil {
			t.Fatalf("Failed to build mod: %v", err)
		}
		api, err := db.NewAPIMod("1.20.4", mcversion.Fabric, "Lithium", "lithium.jar", "AB12",
			nil, false, db.SourceModrinth, "gvQqBUqZ")
		if err != nil {
			t.Fatalf("Failed to build mod: %v", err)
		}
		for _, mod := range []*db.Mod{simple, api} {
			if _, _, err := store.GetOrCreate(mod); err != nil {
				t.Fatalf("GetOrCreate failed: %v", err)
			}
		}

		payload, err := renderCatalog(store)
		if err != nil {
			t.Fatalf("renderCatalog failed: %v", err)
		}
		var entries []db.DumpEntry
		if err := json.Unmarshal([]byte(payload), &entries); err != nil {
			t.Fatalf("Export is not a valid dump: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("Expected 2 dump entries, got %d", len(entries))
		}
	})
}

func TestBuildClients(t *testing.T) {
	httpClient := &http.Client{Timeout: httpTimeout}

	t.Run("both registries share one http client", func(t *testing.T) {
		cfg := config.Config{UserAgent: "test-agent", CurseforgeAPIKey: "test-key"}
		clients, err := buildClients(cfg, httpClient)
		if err != nil {
			t.Fatalf("buildClients failed: %v", err)
		}
		mr, ok := clients[db.SourceModrinth].(*modrinth.Client)
		if !ok {
			t.Fatal("Expected a Modrinth client")
		}
		cf, ok := clients[db.SourceCurseForge].(*curseforge.Client)
		if !ok {
			t.Fatal("Expected a CurseForge client")
		}
		if mr.HTTPClient != httpClient || cf.HTTPClient != httpClient {
			t.Error("Expected both clients to share the given http client")
		}
	})

	t.Run("curseforge omitted without an api key", func(t *testing.T) {
		cfg := config.Config{UserAgent: "test-agent"}
		clients, err := buildClients(cfg, httpClient)
		if err != nil {
			t.Fatalf("buildClients failed: %v", err)
		}
		if clients[db.SourceModrinth] == nil {
			t.Error("Modrinth client should always be built")
		}
		if _, ok := clients[db.SourceCurseForge]; ok {
			t.Error("CurseForge client should be omitted without an api key")
		}
	})
}

func TestRenderOutcomes(t *testing.T) {
	mod := &db.Mod{UniqueIdentifier: "sodium.jar", Name: "Sodium"}
	outcomes := []sync.Outcome{
		{Mod: mod, Status: sync.StatusCommitted, CurrentVersion: "newver"},
		{Mod: mod, Status: sync.StatusUpToDate, CurrentVersion: "newver"},
		{Mod: mod, Status: sync.StatusFatal},
	}
	if fatal := renderOutcomes(outcomes); fatal != 1 {
		t.Errorf("Expected 1 fatal outcome, got %d", fatal)
	}
}

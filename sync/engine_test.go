package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"modsync/config"
	"modsync/db"
	"modsync/mcversion"
	"modsync/registry"
)

// fakeClient serves canned descriptors and download bodies keyed by
// the mod's api id, counting the calls.
type fakeClient struct {
	descriptors map[string]*registry.Descriptor
	resolveErr  map[string]error
	body        []byte

	resolveCalls  int
	downloadCalls int
}

func (f *fakeClient) ResolveLatest(_ context.Context, mod *db.Mod) (*registry.Descriptor, error) {
	f.resolveCalls++
	if err := f.resolveErr[mod.APIModID]; err != nil {
		return nil, err
	}
	descriptor, ok := f.descriptors[mod.APIModID]
	if !ok {
		return nil, &registry.NoCompatibleVersionError{Mod: mod.DisplayName(), Tried: []string{mod.MinecraftVersion}}
	}
	return descriptor, nil
}

func (f *fakeClient) Download(_ context.Context, _ string) ([]byte, error) {
	f.downloadCalls++
	return f.body, nil
}

type engineFixture struct {
	store   *db.Store
	client  *fakeClient
	modsDir string
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	modsDir := t.TempDir()
	store, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	return &engineFixture{
		store:   store,
		client:  &fakeClient{descriptors: map[string]*registry.Descriptor{}, resolveErr: map[string]error{}},
		modsDir: modsDir,
	}
}

func (f *engineFixture) engine(dryRun bool) *Engine {
	clients := map[db.APISource]registry.Client{db.SourceModrinth: f.client}
	return NewEngine(f.store, clients, f.modsDir, dryRun, zap.NewNop().Sugar())
}

func (f *engineFixture) addAPIMod(t *testing.T, name, fileName, versionID, modID string) db.Mod {
	t.Helper()
	mod, err := db.NewAPIMod("1.20.4", mcversion.Fabric, name, fileName, versionID, nil, false, db.SourceModrinth, modID)
	if err != nil {
		t.Fatalf("Failed to build mod: %v", err)
	}
	saved, _, err := f.store.GetOrCreate(mod)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	return *saved
}

func (f *engineFixture) reload(t *testing.T, id uint) db.Mod {
	t.Helper()
	all, err := f.store.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	for _, mod := range all {
		if mod.ID == id {
			return mod
		}
	}
	t.Fatalf("Record %d not found", id)
	return db.Mod{}
}

func TestSynchronizeCommit(t *testing.T) {
	fixture := newEngineFixture(t)
	mod := fixture.addAPIMod(t, "Sodium", "sodium-old.jar", "oldver", "AANobbMI")

	oldPath := filepath.Join(fixture.modsDir, "sodium-old.jar")
	if err := os.WriteFile(oldPath, []byte("old"), 0644); err != nil {
		t.Fatalf("Failed to seed old file: %v", err)
	}

	body := []byte("new jar bytes")
	digest, err := computeDigest("sha1", body)
	if err != nil {
		t.Fatalf("computeDigest failed: %v", err)
	}
	fixture.client.body = body
	fixture.client.descriptors["AANobbMI"] = &registry.Descriptor{
		VersionID: "newver",
		URL:       "https://cdn.example/sodium-new.jar",
		Filename:  "sodium-new.jar",
		Checksums: []registry.Checksum{{Algorithm: "sha1", Value: digest}},
		Verify:    registry.VerifyAll,
	}

	outcomes, err := fixture.engine(false).Synchronize(context.Background(), []db.Mod{mod})
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != StatusCommitted {
		t.Fatalf("Expected a committed outcome, got %+v", outcomes)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("Old file should have been removed")
	}
	written, err := os.ReadFile(filepath.Join(fixture.modsDir, "sodium-new.jar"))
	if err != nil || string(written) != "new jar bytes" {
		t.Errorf("New file missing or wrong: %v %q", err, written)
	}

	reloaded := fixture.reload(t, mod.ID)
	if reloaded.VersionID != "newver" || reloaded.UniqueIdentifier != "sodium-new.jar" {
		t.Errorf("Record not persisted: %+v", reloaded)
	}
}

func TestSynchronizeUpToDate(t *testing.T) {
	fixture := newEngineFixture(t)
	mod := fixture.addAPIMod(t, "Sodium", "sodium-current.jar", "curver", "AANobbMI")

	currentPath := filepath.Join(fixture.modsDir, "sodium-current.jar")
	if err := os.WriteFile(currentPath, []byte("current"), 0644); err != nil {
		t.Fatalf("Failed to seed current file: %v", err)
	}
	fixture.client.descriptors["AANobbMI"] = &registry.Descriptor{
		VersionID: "curver",
		URL:       "https://cdn.example/sodium-current.jar",
		Filename:  "sodium-current.jar",
		Verify:    registry.VerifyAll,
	}

	engine := fixture.engine(false)
	outcomes, err := engine.Synchronize(context.Background(), []db.Mod{mod})
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if outcomes[0].Status != StatusUpToDate {
		t.Fatalf("Expected up to date, got %+v", outcomes[0])
	}
	if fixture.client.downloadCalls != 0 {
		t.Error("Up-to-date mods must not be downloaded")
	}
	if engine.Changed() {
		t.Error("Up-to-date runs must not mutate the catalog")
	}
}

func TestSynchronizeHashMismatch(t *testing.T) {
	fixture := newEngineFixture(t)
	mod := fixture.addAPIMod(t, "Sodium", "sodium-old.jar", "oldver", "AANobbMI")

	fixture.client.body = []byte("tampered bytes")
	fixture.client.descriptors["AANobbMI"] = &registry.Descriptor{
		VersionID: "newver",
		URL:       "https://cdn.example/sodium-new.jar",
		Filename:  "sodium-new.jar",
		Checksums: []registry.Checksum{{Algorithm: "sha1", Value: "0000000000000000000000000000000000000000"}},
		Verify:    registry.VerifyAll,
	}

	outcomes, err := fixture.engine(false).Synchronize(context.Background(), []db.Mod{mod})
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if outcomes[0].Status != StatusHashMismatch {
		t.Fatalf("Expected hash mismatch, got %+v", outcomes[0])
	}
	var mismatch *registry.IntegrityMismatchError
	if !errors.As(outcomes[0].Err, &mismatch) {
		t.Fatalf("Expected IntegrityMismatchError, got %v", outcomes[0].Err)
	}

	if _, err := os.Stat(filepath.Join(fixture.modsDir, "sodium-new.jar")); !os.IsNotExist(err) {
		t.Error("Rejected bytes must not be written to disk")
	}

	// The record still takes the new version id and file name even
	// though no file was written.
	reloaded := fixture.reload(t, mod.ID)
	if reloaded.VersionID != "newver" || reloaded.UniqueIdentifier != "sodium-new.jar" {
		t.Errorf("Expected version and file name persisted, got %+v", reloaded)
	}
}

func TestSynchronizeDryRun(t *testing.T) {
	fixture := newEngineFixture(t)
	mod := fixture.addAPIMod(t, "Sodium", "sodium-old.jar", "oldver", "AANobbMI")

	oldPath := filepath.Join(fixture.modsDir, "sodium-old.jar")
	if err := os.WriteFile(oldPath, []byte("old"), 0644); err != nil {
		t.Fatalf("Failed to seed old file: %v", err)
	}
	fixture.client.descriptors["AANobbMI"] = &registry.Descriptor{
		VersionID: "newver",
		URL:       "https://cdn.example/sodium-new.jar",
		Filename:  "sodium-new.jar",
		Verify:    registry.VerifyAll,
	}

	engine := fixture.engine(true)
	outcomes, err := engine.Synchronize(context.Background(), []db.Mod{mod})
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if outcomes[0].Status != StatusCommitted {
		t.Fatalf("Expected a synthesized success, got %+v", outcomes[0])
	}
	if fixture.client.downloadCalls != 0 {
		t.Error("Dry runs must not download")
	}
	if _, err := os.Stat(oldPath); err != nil {
		t.Error("Dry runs must not remove the old file")
	}
	reloaded := fixture.reload(t, mod.ID)
	if reloaded.VersionID != "oldver" || reloaded.UniqueIdentifier != "sodium-old.jar" {
		t.Errorf("Dry runs must not mutate the record, got %+v", reloaded)
	}
	if engine.Changed() {
		t.Error("Dry runs must not report catalog changes")
	}
}

func TestSynchronizeCustomMod(t *testing.T) {
	fixture := newEngineFixture(t)
	custom, err := db.NewCustomMod("1.20.4", mcversion.Fabric, "Secret Mod", "secret.jar", "v10",
		nil, false, "https://example.com/secret.jar")
	if err != nil {
		t.Fatalf("Failed to build mod: %v", err)
	}
	saved, _, err := fixture.store.GetOrCreate(custom)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	outcomes, err := fixture.engine(false).Synchronize(context.Background(), []db.Mod{*saved})
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	outcome := outcomes[0]
	if outcome.Status != StatusManualDownloadRequired {
		t.Fatalf("Expected manual download, got %+v", outcome)
	}
	if outcome.URL != "https://example.com/secret.jar" || outcome.CurrentVersion != "v10" {
		t.Errorf("Outcome should carry the URL and current version: %+v", outcome)
	}
	if fixture.client.resolveCalls != 0 {
		t.Error("Custom mods must never hit a registry")
	}
}

func TestSynchronizeBatchIsolation(t *testing.T) {
	fixture := newEngineFixture(t)
	good := fixture.addAPIMod(t, "Sodium", "sodium-current.jar", "curver", "AANobbMI")
	missing := fixture.addAPIMod(t, "Lithium", "lithium-old.jar", "oldver", "gvQqBUqZ")
	broken := fixture.addAPIMod(t, "Iris", "iris-old.jar", "oldver", "YLtest")

	if err := os.WriteFile(filepath.Join(fixture.modsDir, "sodium-current.jar"), []byte("current"), 0644); err != nil {
		t.Fatalf("Failed to seed current file: %v", err)
	}
	fixture.client.descriptors["AANobbMI"] = &registry.Descriptor{
		VersionID: "curver",
		URL:       "https://cdn.example/sodium-current.jar",
		Filename:  "sodium-current.jar",
		Verify:    registry.VerifyAll,
	}
	fixture.client.resolveErr["YLtest"] = fmt.Errorf("connection reset")

	outcomes, err := fixture.engine(false).Synchronize(context.Background(), []db.Mod{good, missing, broken})
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status != StatusUpToDate {
		t.Errorf("Sodium: expected up to date, got %+v", outcomes[0])
	}
	if outcomes[1].Status != StatusNoCompatibleVersion {
		t.Errorf("Lithium: expected no compatible version, got %+v", outcomes[1])
	}
	if outcomes[2].Status != StatusFatal {
		t.Errorf("Iris: expected fatal, got %+v", outcomes[2])
	}
}

func TestSynchronizePreflight(t *testing.T) {
	fixture := newEngineFixture(t)
	mod, err := db.NewAPIMod("1.20.4", mcversion.Forge, "JEI", "jei.jar", "100",
		nil, false, db.SourceCurseForge, "238222")
	if err != nil {
		t.Fatalf("Failed to build mod: %v", err)
	}
	saved, _, err := fixture.store.GetOrCreate(mod)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	_, err = fixture.engine(false).Synchronize(context.Background(), []db.Mod{*saved})
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if fixture.client.resolveCalls != 0 {
		t.Error("Pre-flight failure must abort before any task starts")
	}
}

func TestSynchronizeMissingFileWithoutURL(t *testing.T) {
	fixture := newEngineFixture(t)
	mod := fixture.addAPIMod(t, "JEI", "jei-current.jar", "100", "AANobbMI")

	// Version and file name match but the file is gone, and the reused
	// descriptor carries no URL to re-fetch it.
	fixture.client.descriptors["AANobbMI"] = &registry.Descriptor{
		VersionID: "100",
		Filename:  "jei-current.jar",
		Verify:    registry.VerifyAny,
	}

	outcomes, err := fixture.engine(false).Synchronize(context.Background(), []db.Mod{mod})
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if outcomes[0].Status != StatusFatal {
		t.Fatalf("Expected fatal outcome, got %+v", outcomes[0])
	}
}

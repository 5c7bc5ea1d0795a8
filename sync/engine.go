// Package sync implements the per-mod reconciliation state machine and
// the concurrent batch orchestration around it.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	stdsync "sync"

	"go.uber.org/zap"

	"modsync/config"
	"modsync/db"
	"modsync/registry"
)

// Engine reconciles declared catalog records against the remote
// registries, one concurrent task per mod over shared clients.
type Engine struct {
	store   *db.Store
	clients map[db.APISource]registry.Client
	modsDir string
	dryRun  bool
	log     *zap.SugaredLogger

	// mutated tracks whether any record changed during the batch, for
	// the unsaved-changes warning after a sync.
	mutated stdsync.Once
	changed bool
}

// NewEngine builds an engine. Clients may omit a registry; the
// pre-flight check rejects batches that would need the missing one.
func NewEngine(store *db.Store, clients map[db.APISource]registry.Client, modsDir string, dryRun bool, log *zap.SugaredLogger) *Engine {
	return &Engine{
		store:   store,
		clients: clients,
		modsDir: modsDir,
		dryRun:  dryRun,
		log:     log,
	}
}

// Changed reports whether the batch persisted any record mutation.
func (e *Engine) Changed() bool {
	return e.changed
}

// Synchronize runs the reconciliation state machine for every given
// mod concurrently and returns all outcomes. Individual failures are
// captured as outcome values; the batch always runs to completion. The
// only error return is the pre-flight configuration check.
func (e *Engine) Synchronize(ctx context.Context, mods []db.Mod) ([]Outcome, error) {
	if err := e.preflight(mods); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(mods))
	var wg stdsync.WaitGroup

	for i := range mods {
		wg.Add(1)
		// Each task owns exactly one result slot, so no lock is needed
		// around the outcome writes.
		go func(i int) {
			defer wg.Done()
			outcomes[i] = e.syncMod(ctx, &mods[i])
		}(i)
	}

	wg.Wait()
	return outcomes, nil
}

// preflight aborts the whole batch before any task starts when a mod
// needs a registry no client is configured for. This is a
// configuration error, not a per-mod outcome.
func (e *Engine) preflight(mods []db.Mod) error {
	for i := range mods {
		if mods[i].Kind != db.KindAPI {
			continue
		}
		if e.clients[mods[i].APISource] == nil {
			if mods[i].APISource == db.SourceCurseForge {
				return &config.ConfigurationError{
					Reason: fmt.Sprintf("%s is sourced from CurseForge but CURSEFORGE_API_KEY is not set", mods[i].DisplayName()),
				}
			}
			return &config.ConfigurationError{
				Reason: fmt.Sprintf("no registry client configured for %s", mods[i].DisplayName()),
			}
		}
	}
	return nil
}

// syncMod walks one mod through
// Resolving -> UpToDate | Updating -> Fetching -> Verifying -> Committed | HashMismatch,
// converting every failure into an outcome value at this boundary.
func (e *Engine) syncMod(ctx context.Context, mod *db.Mod) Outcome {
	log := e.log.With(zap.String("mod", mod.DisplayName()))

	if mod.Kind == db.KindCustom {
		log.Infow("Manual download required", zap.String("url", mod.DownloadURL))
		return Outcome{
			Mod:            mod,
			Status:         StatusManualDownloadRequired,
			Err:            &registry.ManualDownloadRequiredError{Mod: mod.DisplayName(), URL: mod.DownloadURL, CurrentVersion: mod.VersionID},
			URL:            mod.DownloadURL,
			CurrentVersion: mod.VersionID,
		}
	}

	client := e.clients[mod.APISource]
	descriptor, err := client.ResolveLatest(ctx, mod)
	if err != nil {
		var noVersion *registry.NoCompatibleVersionError
		if errors.As(err, &noVersion) {
			log.Warnw("No compatible version found online", zap.Error(err))
			return Outcome{Mod: mod, Status: StatusNoCompatibleVersion, Err: err, CurrentVersion: mod.VersionID}
		}
		log.Errorw("Failed to resolve latest version", zap.Error(err))
		return Outcome{Mod: mod, Status: StatusFatal, Err: err}
	}

	targetPath := filepath.Join(e.modsDir, descriptor.Filename)
	upToDate := mod.VersionID == descriptor.VersionID &&
		mod.FileName() == descriptor.Filename &&
		fileExists(targetPath)
	if upToDate {
		log.Infow("Mod is already up to date", zap.String("version", mod.VersionID))
		return Outcome{Mod: mod, Status: StatusUpToDate, CurrentVersion: mod.VersionID}
	}

	if e.dryRun {
		log.Infow("Dry run: would update",
			zap.String("current_version", mod.VersionID),
			zap.String("new_version", descriptor.VersionID),
			zap.String("file", descriptor.Filename),
		)
		return Outcome{Mod: mod, Status: StatusCommitted, CurrentVersion: descriptor.VersionID}
	}

	if descriptor.URL == "" {
		// Reused index fields carry no URL; re-downloading a version we
		// already know needs the file back on disk manually.
		err := fmt.Errorf("%s: stored version %s matches remotely but the file is missing and the descriptor has no download URL",
			mod.DisplayName(), mod.VersionID)
		log.Errorw("Cannot re-fetch known version", zap.Error(err))
		return Outcome{Mod: mod, Status: StatusFatal, Err: err}
	}

	// Best-effort removal of the old file; missing is not an error.
	oldPath := filepath.Join(e.modsDir, mod.FileName())
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		log.Warnw("Failed to remove old mod file", zap.String("path", oldPath), zap.Error(err))
	}

	// Persist the new version id before fetching a single byte: a crash
	// mid-download must not loop forever re-attempting a version that
	// was already in flight. Convergence over atomicity.
	if err := e.persist(mod, map[string]any{"version_id": descriptor.VersionID}); err != nil {
		log.Errorw("Failed to persist version id", zap.Error(err))
		return Outcome{Mod: mod, Status: StatusFatal, Err: err}
	}
	mod.VersionID = descriptor.VersionID

	log.Infow("Downloading new version",
		zap.String("version", descriptor.VersionID),
		zap.String("file", descriptor.Filename),
	)
	data, err := client.Download(ctx, descriptor.URL)
	if err != nil {
		log.Errorw("Failed to download file", zap.String("url", descriptor.URL), zap.Error(err))
		return Outcome{Mod: mod, Status: StatusFatal, Err: err}
	}

	if err := verifyIntegrity(mod.DisplayName(), data, descriptor); err != nil {
		var mismatch *registry.IntegrityMismatchError
		if errors.As(err, &mismatch) {
			// The file is not written, but the new filename is still
			// persisted on the record. Kept for behavioral parity with
			// the original tool.
			if persistErr := e.persist(mod, map[string]any{"unique_identifier": descriptor.Filename}); persistErr != nil {
				log.Warnw("Failed to persist file name after hash mismatch", zap.Error(persistErr))
			} else {
				mod.UniqueIdentifier = descriptor.Filename
			}
			log.Errorw("Downloaded file failed verification", zap.Error(err))
			return Outcome{Mod: mod, Status: StatusHashMismatch, Err: err, CurrentVersion: descriptor.VersionID}
		}
		log.Errorw("Failed to verify download", zap.Error(err))
		return Outcome{Mod: mod, Status: StatusFatal, Err: err}
	}

	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		log.Errorw("Failed to write mod file", zap.String("path", targetPath), zap.Error(err))
		return Outcome{Mod: mod, Status: StatusFatal, Err: err}
	}

	if err := e.persist(mod, map[string]any{"unique_identifier": descriptor.Filename}); err != nil {
		log.Errorw("Failed to persist file name", zap.Error(err))
		return Outcome{Mod: mod, Status: StatusFatal, Err: err}
	}
	mod.UniqueIdentifier = descriptor.Filename

	log.Infow("Successfully updated mod", zap.String("version", descriptor.VersionID), zap.String("file", descriptor.Filename))
	return Outcome{Mod: mod, Status: StatusCommitted, CurrentVersion: descriptor.VersionID}
}

func (e *Engine) persist(mod *db.Mod, fields map[string]any) error {
	if err := e.store.Update(mod, fields); err != nil {
		return err
	}
	e.mutated.Do(func() { e.changed = true })
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

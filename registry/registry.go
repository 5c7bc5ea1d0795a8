// Package registry defines the contract between the sync engine and
// the remote registry clients.
package registry

import (
	"context"
	"fmt"
	"strings"

	"modsync/db"
)

// VerifyMode says how the engine combines a descriptor's checksums.
type VerifyMode int

const (
	// VerifyAll requires every declared checksum to match.
	VerifyAll VerifyMode = iota
	// VerifyAny accepts the download when any declared checksum matches.
	VerifyAny
)

// Checksum is one declared integrity pair.
type Checksum struct {
	Algorithm string // "sha1", "sha512" or "md5"
	Value     string // lowercase hex digest
}

// Descriptor is a resolved remote version: everything the engine needs
// to drive one download.
type Descriptor struct {
	VersionID string
	URL       string
	Filename  string
	Checksums []Checksum
	Verify    VerifyMode
}

// Resolver resolves the best compatible remote version for a mod,
// walking the declining fallback sequence of game versions.
type Resolver interface {
	ResolveLatest(ctx context.Context, mod *db.Mod) (*Descriptor, error)
}

// Client is what the sync engine needs from a registry: resolution
// plus raw file downloads over the shared connection pool.
type Client interface {
	Resolver
	Download(ctx context.Context, url string) ([]byte, error)
}

// NoCompatibleVersionError reports that no fallback version yielded a
// remote candidate for the mod.
type NoCompatibleVersionError struct {
	Mod   string
	Tried []string
}

func (e *NoCompatibleVersionError) Error() string {
	return fmt.Sprintf("no compatible version of %s found online (tried %s)",
		e.Mod, strings.Join(e.Tried, ", "))
}

// ManualDownloadRequiredError is the deliberate terminal case for
// custom-source mods: they are never resolved automatically.
type ManualDownloadRequiredError struct {
	Mod            string
	URL            string
	CurrentVersion string
}

func (e *ManualDownloadRequiredError) Error() string {
	return fmt.Sprintf("%s (current version %s) must be downloaded manually from %s",
		e.Mod, e.CurrentVersion, e.URL)
}

// IntegrityMismatchError reports a checksum failure on fetched bytes.
type IntegrityMismatchError struct {
	Mod       string
	Algorithm string
	Expected  string
	Actual    string
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("%s: downloaded file failed %s verification (expected %s, got %s)",
		e.Mod, e.Algorithm, e.Expected, e.Actual)
}

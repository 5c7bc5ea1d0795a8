package sync

import "modsync/db"

// Status is the terminal state of one mod's reconciliation.
type Status int

const (
	// StatusCommitted: a new version was downloaded, verified and written.
	StatusCommitted Status = iota
	// StatusUpToDate: stored version, filename and on-disk file all match.
	StatusUpToDate
	// StatusNoCompatibleVersion: no fallback version had a remote release.
	StatusNoCompatibleVersion
	// StatusManualDownloadRequired: custom-source mod, never automated.
	StatusManualDownloadRequired
	// StatusHashMismatch: downloaded bytes failed verification; nothing
	// was written to disk.
	StatusHashMismatch
	// StatusFatal: an unexpected network or disk error. The batch still
	// runs to completion; only this mod is affected.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusUpToDate:
		return "up to date"
	case StatusNoCompatibleVersion:
		return "no compatible version"
	case StatusManualDownloadRequired:
		return "manual download required"
	case StatusHashMismatch:
		return "hash mismatch"
	default:
		return "fatal"
	}
}

// Outcome is the per-mod result of one sync batch. Failures are
// values, not panics: one mod's outcome never cancels its siblings.
type Outcome struct {
	Mod    *db.Mod
	Status Status
	Err    error

	// Set for manual-download outcomes so the caller can act.
	URL            string
	CurrentVersion string
}

// OK reports whether the outcome needs no operator attention.
func (o Outcome) OK() bool {
	return o.Status == StatusCommitted || o.Status == StatusUpToDate
}

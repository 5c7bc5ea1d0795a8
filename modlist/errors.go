package modlist

import "fmt"

// FormatError reports a raw mods list whose overall shape could not be
// recognised. Ingestion aborts without touching the store.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognised mods-list format: %s", e.Reason)
}

// EntryError reports a single malformed entry, tagged with the key of
// the offending record. It always wraps the violated invariant.
type EntryError struct {
	Key string
	Err error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("mods-list entry %q could not be loaded: %v", e.Key, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

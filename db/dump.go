package db

import (
	"fmt"
	"strings"

	"modsync/mcversion"
)

// DumpEntry is one element of a serialized catalog dump: a model
// label, an optional primary key and a flat field map. The same shape
// is produced by Dump and accepted back by LoadDump.
type DumpEntry struct {
	Model  string         `json:"model"`
	PK     any            `json:"pk,omitempty"`
	Fields map[string]any `json:"fields"`
}

// IsDumpShaped reports whether keys look like a DumpEntry: a subset of
// {model, fields, pk} containing at least model and fields.
func IsDumpShaped(keys map[string]bool) bool {
	if !keys["model"] || !keys["fields"] {
		return false
	}
	for key := range keys {
		if key != "model" && key != "fields" && key != "pk" {
			return false
		}
	}
	return true
}

// LoadDump restores records from a serialized dump. This is the
// store's native deserialization path: fields are copied as stored,
// without the per-field validation the constructors apply. Records are
// still upserted by natural key so reloading a dump is idempotent.
func (s *Store) LoadDump(entries []DumpEntry) error {
	for _, entry := range entries {
		if err := s.loadDumpEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadDumpEntry(entry DumpEntry) error {
	model := entry.Model
	if idx := strings.LastIndex(model, "."); idx >= 0 {
		model = model[idx+1:]
	}

	switch strings.ToLower(model) {
	case "modtag":
		name, _ := entry.Fields["name"].(string)
		if name == "" {
			return fmt.Errorf("dump entry %q has no name field", entry.Model)
		}
		tag := ModTag{Name: name}
		return s.db.Where("name = ?", name).FirstOrCreate(&tag, ModTag{Name: name}).Error
	case "simplemod", "custommod", "customsourcemod", "apimod", "apisourcemod":
		mod, err := modFromDumpFields(model, entry.Fields)
		if err != nil {
			return err
		}
		_, _, err = s.GetOrCreate(mod)
		return err
	default:
		return fmt.Errorf("dump entry has unknown model %q", entry.Model)
	}
}

func modFromDumpFields(model string, fields map[string]any) (*Mod, error) {
	str := func(key string) string {
		value, _ := fields[key].(string)
		return value
	}

	mod := &Mod{
		MinecraftVersion: str("minecraft_version"),
		Loader:           mcversion.Loader(str("mod_loader")),
		UniqueIdentifier: str("_unique_identifier"),
		Name:             str("name"),
		VersionID:        str("version_id"),
		DownloadURL:      str("download_url"),
		APISource:        APISource(str("api_source")),
		APIModID:         str("api_mod_id"),
	}
	if disabled, ok := fields["disabled"].(bool); ok {
		mod.Disabled = disabled
	}
	switch rawTags := fields["tags"].(type) {
	case []any:
		for _, rawTag := range rawTags {
			if name, ok := rawTag.(string); ok {
				mod.Tags = append(mod.Tags, ModTag{Name: name})
			}
		}
	case []string:
		for _, name := range rawTags {
			mod.Tags = append(mod.Tags, ModTag{Name: name})
		}
	}

	switch strings.ToLower(model) {
	case "simplemod":
		mod.Kind = KindSimple
	case "custommod", "customsourcemod":
		mod.Kind = KindCustom
	default:
		mod.Kind = KindAPI
	}

	if mod.MinecraftVersion == "" || mod.UniqueIdentifier == "" {
		return nil, fmt.Errorf("dump entry %q is missing its natural key", model)
	}
	return mod, nil
}

// Dump serializes the whole catalog into dump entries that LoadDump
// accepts back.
func (s *Store) Dump() ([]DumpEntry, error) {
	mods, err := s.All()
	if err != nil {
		return nil, err
	}

	entries := make([]DumpEntry, 0, len(mods))
	for _, mod := range mods {
		fields := map[string]any{
			"minecraft_version":  mod.MinecraftVersion,
			"mod_loader":         string(mod.Loader),
			"_unique_identifier": mod.UniqueIdentifier,
		}
		var model string
		switch mod.Kind {
		case KindSimple:
			model = "catalog.simplemod"
		case KindCustom:
			model = "catalog.customsourcemod"
			fields["download_url"] = mod.DownloadURL
		default:
			model = "catalog.apisourcemod"
			fields["api_source"] = string(mod.APISource)
			fields["api_mod_id"] = mod.APIModID
		}
		if mod.Kind != KindSimple {
			fields["name"] = mod.Name
			fields["version_id"] = mod.VersionID
			fields["disabled"] = mod.Disabled
			fields["tags"] = mod.TagNames()
		}
		entries = append(entries, DumpEntry{Model: model, PK: mod.ID, Fields: fields})
	}
	return entries, nil
}

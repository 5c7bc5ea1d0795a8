package db

import (
	"sort"
	"strings"

	"gorm.io/gorm"

	"modsync/mcversion"
)

// Kind discriminates the mod record subtypes sharing the mods table.
type Kind string

const (
	// KindSimple is a manually tracked mod: identity only, no remote source.
	KindSimple Kind = "simple"
	// KindCustom is a mod downloaded from a fixed URL, never auto-updated.
	KindCustom Kind = "custom"
	// KindAPI is a mod resolved against one of the remote registries.
	KindAPI Kind = "api"
)

// APISource selects which registry an API-sourced mod belongs to.
type APISource string

const (
	SourceCurseForge APISource = "CF"
	SourceModrinth   APISource = "MR"
)

// Mod represents one catalog record. The natural key is
// (MinecraftVersion, Loader, UniqueIdentifier); for detailed mods the
// unique identifier doubles as the installed file name.
type Mod struct {
	gorm.Model
	MinecraftVersion string           `gorm:"size:9;uniqueIndex:idx_mod_natural_key;not null"`
	Loader           mcversion.Loader `gorm:"size:2;uniqueIndex:idx_mod_natural_key;not null"`
	UniqueIdentifier string           `gorm:"size:65;uniqueIndex:idx_mod_natural_key;not null"`
	Kind             Kind             `gorm:"size:8;not null"`

	// Detailed-mod fields, zero-valued for simple mods.
	Name      string `gorm:"size:65"`
	VersionID string `gorm:"size:20"`
	Disabled  bool
	Tags      []ModTag `gorm:"many2many:mod_tag_links"`

	// Custom-source field.
	DownloadURL string

	// API-source fields.
	APISource APISource `gorm:"size:2;index:idx_mod_api_id"`
	APIModID  string    `gorm:"size:20;index:idx_mod_api_id"`
}

// ModTag is a lowercase label attached to any number of detailed mods.
type ModTag struct {
	gorm.Model
	Name string `gorm:"size:65;uniqueIndex;not null"`
}

// FileName returns the installed file name of a detailed mod. For
// simple mods this is the bare identifier.
func (m *Mod) FileName() string {
	return m.UniqueIdentifier
}

// DisplayName returns the name shown in logs and outcome reports.
func (m *Mod) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.UniqueIdentifier
}

// TagNames returns the mod's tag names sorted for stable output.
func (m *Mod) TagNames() []string {
	names := make([]string, 0, len(m.Tags))
	for _, tag := range m.Tags {
		names = append(names, tag.Name)
	}
	sort.Strings(names)
	return names
}

// NewSimpleMod validates and builds a manually tracked mod record.
func NewSimpleMod(minecraftVersion string, loader mcversion.Loader, identifier string) (*Mod, error) {
	version, err := mcversion.Canonicalize(minecraftVersion)
	if err != nil {
		return nil, err
	}
	if err := validateIdentifier("identifier", identifier); err != nil {
		return nil, err
	}
	return &Mod{
		MinecraftVersion: version,
		Loader:           loader,
		UniqueIdentifier: identifier,
		Kind:             KindSimple,
	}, nil
}

// NewCustomMod validates and builds a custom-source mod record.
func NewCustomMod(minecraftVersion string, loader mcversion.Loader, name, fileName, versionID string, tags []string, disabled bool, downloadURL string) (*Mod, error) {
	mod, err := newDetailedMod(minecraftVersion, loader, name, fileName, versionID, tags, disabled)
	if err != nil {
		return nil, err
	}
	if err := validateURL(downloadURL); err != nil {
		return nil, err
	}
	mod.Kind = KindCustom
	mod.DownloadURL = downloadURL
	return mod, nil
}

// NewAPIMod validates and builds a registry-sourced mod record.
func NewAPIMod(minecraftVersion string, loader mcversion.Loader, name, fileName, versionID string, tags []string, disabled bool, source APISource, modID string) (*Mod, error) {
	mod, err := newDetailedMod(minecraftVersion, loader, name, fileName, versionID, tags, disabled)
	if err != nil {
		return nil, err
	}
	if source != SourceCurseForge && source != SourceModrinth {
		return nil, &FieldError{Field: "api_source", Value: string(source), Reason: "unknown registry"}
	}
	if err := validateShortID("api_mod_id", modID); err != nil {
		return nil, err
	}
	mod.Kind = KindAPI
	mod.APISource = source
	mod.APIModID = modID
	return mod, nil
}

func newDetailedMod(minecraftVersion string, loader mcversion.Loader, name, fileName, versionID string, tags []string, disabled bool) (*Mod, error) {
	version, err := mcversion.Canonicalize(minecraftVersion)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateFileName(fileName); err != nil {
		return nil, err
	}
	if err := validateShortID("version_id", versionID); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(tags))
	modTags := make([]ModTag, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if err := validateTag(tag); err != nil {
			return nil, err
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		modTags = append(modTags, ModTag{Name: tag})
	}

	return &Mod{
		MinecraftVersion: version,
		Loader:           loader,
		UniqueIdentifier: fileName,
		Name:             name,
		VersionID:        versionID,
		Tags:             modTags,
		Disabled:         disabled,
	}, nil
}

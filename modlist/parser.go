// Package modlist ingests a declared mods list of unknown shape into
// the record store. The raw input may be a single JSON object, an
// array of objects, an array of strings, an array of field arrays, a
// serialized catalog dump or flat comma/newline separated text; the
// parser sniffs the shape and normalises everything into validated
// catalog records.
package modlist

import (
	"encoding/json"
	"fmt"
	"strings"

	"modsync/db"
	"modsync/mcversion"
)

// Context carries the game version and loader inherited by entries
// that do not declare their own. Discoveries in nested groupings
// narrow it; the configured selection is the outermost default.
type Context struct {
	Version string
	Loader  mcversion.Loader
}

// narrowed returns a copy of the context refined by a grouping hint:
// a key that parses as an embedded game version or a loader name.
func (c Context) narrowed(hint string) Context {
	if version, ok := mcversion.VersionFromName(hint); ok {
		c.Version = version
	}
	if loader, ok := mcversion.LoaderFromName(hint); ok {
		c.Loader = loader
	}
	return c
}

// Parser normalises raw mods lists into store records.
type Parser struct {
	store    *db.Store
	defaults Context
}

// NewParser builds a parser whose fallback context is the configured
// game version and loader selection.
func NewParser(store *db.Store, version string, loader mcversion.Loader) *Parser {
	return &Parser{store: store, defaults: Context{Version: version, Loader: loader}}
}

// Ingest parses raw and populates the record store. All writes happen
// in one transaction after parsing succeeds, so a FormatError or
// EntryError is never partially applied.
func (p *Parser) Ingest(raw string) error {
	mods, dump, err := p.parse(raw)
	if err != nil {
		return err
	}

	return p.store.Transaction(func(tx *db.Store) error {
		if dump != nil {
			return tx.LoadDump(dump)
		}
		for _, mod := range mods {
			if _, _, err := tx.GetOrCreate(mod); err != nil {
				return &EntryError{Key: mod.UniqueIdentifier, Err: err}
			}
		}
		return nil
	})
}

func (p *Parser) parse(raw string) ([]*db.Mod, []db.DumpEntry, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		mods, err := p.parseText(raw)
		return mods, nil, err
	}

	switch value := decoded.(type) {
	case map[string]any:
		if len(value) == 0 {
			return nil, nil, &FormatError{Reason: "empty JSON object"}
		}
		mods, err := p.parseMapping(value, p.defaults)
		return mods, nil, err
	case []any:
		return p.parseTopLevelArray(raw, value)
	default:
		return nil, nil, &FormatError{Reason: "JSON value is not an object or array"}
	}
}

// --- JSON shapes ---

// detailedEntryKeys is the required-field set that makes a JSON object
// a single structured entry instead of a nested grouping.
var detailedEntryKeys = []string{"name", "filename", "versionid", "download"}

// normaliseKey folds field-name variants ("File Name", "file_name",
// "fileName") onto one spelling.
func normaliseKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "")
	key = strings.ReplaceAll(key, "_", "")
	if key == "source" {
		key = "download"
	}
	if key == "modid" || key == "apimodid" {
		key = "modid"
	}
	return key
}

func isDetailedEntry(m map[string]any) bool {
	keys := make(map[string]bool, len(m))
	for key := range m {
		keys[normaliseKey(key)] = true
	}
	for _, required := range detailedEntryKeys {
		if !keys[required] {
			return false
		}
	}
	return true
}

// parseMapping handles a JSON object: either one structured entry or a
// nested grouping whose keys are context hints and whose values
// recurse.
func (p *Parser) parseMapping(m map[string]any, ctx Context) ([]*db.Mod, error) {
	if isDetailedEntry(m) {
		mod, err := p.parseStructuredEntry(m, ctx)
		if err != nil {
			return nil, err
		}
		return []*db.Mod{mod}, nil
	}

	var mods []*db.Mod
	for key, value := range m {
		nested := ctx.narrowed(key)

		switch nestedValue := value.(type) {
		case map[string]any:
			children, err := p.parseMapping(nestedValue, nested)
			if err != nil {
				return nil, err
			}
			mods = append(mods, children...)
		case []any:
			children, err := p.parseNestedArray(nestedValue, nested)
			if err != nil {
				return nil, err
			}
			mods = append(mods, children...)
		default:
			return nil, &FormatError{Reason: fmt.Sprintf("grouping %q holds a scalar value", key)}
		}
	}
	return mods, nil
}

// parseTopLevelArray additionally recognises a serialized catalog dump,
// which bypasses per-field validation via the store's native
// deserialization path.
func (p *Parser) parseTopLevelArray(raw string, arr []any) ([]*db.Mod, []db.DumpEntry, error) {
	kind, err := classifyArray(arr)
	if err != nil {
		return nil, nil, err
	}

	if kind == arrayOfObjects && sampledAreDumpShaped(arr) {
		var entries []db.DumpEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, nil, &FormatError{Reason: fmt.Sprintf("malformed serialized dump: %v", err)}
		}
		return nil, entries, nil
	}

	mods, err := p.parseClassifiedArray(arr, kind, p.defaults)
	return mods, nil, err
}

func (p *Parser) parseNestedArray(arr []any, ctx Context) ([]*db.Mod, error) {
	kind, err := classifyArray(arr)
	if err != nil {
		return nil, err
	}
	return p.parseClassifiedArray(arr, kind, ctx)
}

type arrayKind int

const (
	arrayOfStrings arrayKind = iota
	arrayOfObjects
	arrayOfArrays
)

// classifyArray samples roughly half the elements (at least one) and
// classifies the array as strings, objects or nested arrays.
func classifyArray(arr []any) (arrayKind, error) {
	if len(arr) == 0 {
		return 0, &FormatError{Reason: "empty JSON array"}
	}

	stringCount, objectCount, arrayCount := 0, 0, 0
	sampled := 0
	for _, element := range sample(arr) {
		sampled++
		switch element.(type) {
		case string:
			stringCount++
		case map[string]any:
			objectCount++
		case []any:
			arrayCount++
		}
	}

	switch {
	case stringCount == sampled:
		return arrayOfStrings, nil
	case objectCount == sampled:
		return arrayOfObjects, nil
	case arrayCount == sampled:
		return arrayOfArrays, nil
	default:
		return 0, &FormatError{Reason: "JSON array mixes element types"}
	}
}

// sample picks every other element, which works out to ceil(n/2)
// elements and always includes the first.
func sample[T any](items []T) []T {
	out := make([]T, 0, (len(items)+1)/2)
	for i := 0; i < len(items); i += 2 {
		out = append(out, items[i])
	}
	return out
}

func sampledAreDumpShaped(arr []any) bool {
	for _, element := range sample(arr) {
		object, ok := element.(map[string]any)
		if !ok {
			return false
		}
		keys := make(map[string]bool, len(object))
		for key := range object {
			keys[key] = true
		}
		if !db.IsDumpShaped(keys) {
			return false
		}
	}
	return true
}

func (p *Parser) parseClassifiedArray(arr []any, kind arrayKind, ctx Context) ([]*db.Mod, error) {
	mods := make([]*db.Mod, 0, len(arr))
	for _, element := range arr {
		switch kind {
		case arrayOfStrings:
			identifier, ok := element.(string)
			if !ok {
				return nil, &FormatError{Reason: "JSON array mixes element types"}
			}
			mod, err := p.parseSimpleIdentifier(identifier, ctx)
			if err != nil {
				return nil, err
			}
			mods = append(mods, mod)
		case arrayOfObjects:
			object, ok := element.(map[string]any)
			if !ok {
				return nil, &FormatError{Reason: "JSON array mixes element types"}
			}
			mod, err := p.parseStructuredEntry(object, ctx)
			if err != nil {
				return nil, err
			}
			mods = append(mods, mod)
		case arrayOfArrays:
			inner, ok := element.([]any)
			if !ok {
				return nil, &FormatError{Reason: "JSON array mixes element types"}
			}
			mod, err := p.parseFieldArray(inner, ctx)
			if err != nil {
				return nil, err
			}
			mods = append(mods, mod)
		}
	}
	return mods, nil
}

// parseFieldArray maps one inner string array onto the detail-row
// grammar. A field containing commas plays the role of the quoted tag
// field of the text form.
func (p *Parser) parseFieldArray(inner []any, ctx Context) (*db.Mod, error) {
	var fields, tags []string
	for _, raw := range inner {
		field, ok := raw.(string)
		if !ok {
			return nil, &FormatError{Reason: "nested JSON array holds a non-string element"}
		}
		if field = strings.TrimSpace(field); field == "" {
			continue
		}
		if strings.Contains(field, ",") {
			for _, tag := range strings.Split(field, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
			continue
		}
		fields = append(fields, field)
	}
	return p.parseRowFields(fields, tags, ctx)
}

// parseStructuredEntry builds one detailed mod from a JSON object.
func (p *Parser) parseStructuredEntry(m map[string]any, ctx Context) (*db.Mod, error) {
	fields := make(map[string]any, len(m))
	for key, value := range m {
		fields[normaliseKey(key)] = value
	}

	str := func(key string) string {
		value, _ := fields[key].(string)
		return strings.TrimSpace(value)
	}

	name := str("name")
	fileName := str("filename")
	versionID := str("versionid")
	source := str("download")
	entryKey := name
	if entryKey == "" {
		entryKey = fileName
	}

	if explicit := str("minecraftversion"); explicit != "" {
		ctx.Version = explicit
	} else if version, ok := mcversion.VersionFromName(fileName); ok {
		ctx.Version = version
	}
	if explicit := str("modloader"); explicit != "" {
		loader, err := mcversion.ParseLoader(explicit)
		if err != nil {
			return nil, &EntryError{Key: entryKey, Err: err}
		}
		ctx.Loader = loader
	} else if loader, ok := mcversion.LoaderFromName(fileName); ok {
		ctx.Loader = loader
	}
	ctx = p.withDefaults(ctx)

	var tags []string
	switch rawTags := fields["tags"].(type) {
	case []any:
		for _, rawTag := range rawTags {
			if tag, ok := rawTag.(string); ok {
				tags = append(tags, tag)
			}
		}
	case string:
		for _, tag := range strings.Split(rawTags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	disabled, _ := fields["disabled"].(bool)

	mod, err := p.buildDetailedMod(ctx, name, fileName, versionID, source, str("modid"), tags, disabled)
	if err != nil {
		return nil, &EntryError{Key: entryKey, Err: err}
	}
	return mod, nil
}

// buildDetailedMod maps the source column onto a record subtype: the
// known registry names select an API-sourced mod, anything else is the
// download URL of a custom-source mod.
func (p *Parser) buildDetailedMod(ctx Context, name, fileName, versionID, source, modID string, tags []string, disabled bool) (*db.Mod, error) {
	switch {
	case strings.EqualFold(source, "curseforge") || strings.HasPrefix(strings.ToUpper(source), "FO"):
		return db.NewAPIMod(ctx.Version, ctx.Loader, name, fileName, versionID, tags, disabled,
			db.SourceCurseForge, defaultModID(modID, name))
	case strings.EqualFold(source, "modrinth"):
		return db.NewAPIMod(ctx.Version, ctx.Loader, name, fileName, versionID, tags, disabled,
			db.SourceModrinth, defaultModID(modID, name))
	default:
		return db.NewCustomMod(ctx.Version, ctx.Loader, name, fileName, versionID, tags, disabled, source)
	}
}

// defaultModID falls back to the mod name lowercased with everything
// outside the short-id grammar stripped, for rows that omit the id
// column.
func defaultModID(modID, name string) string {
	if modID != "" {
		return modID
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseSimpleIdentifier builds a manually tracked mod from a bare
// identifier token, narrowing the context by anything the token itself
// reveals.
func (p *Parser) parseSimpleIdentifier(identifier string, ctx Context) (*db.Mod, error) {
	identifier = strings.TrimSpace(identifier)
	ctx = p.withDefaults(ctx.narrowed(identifier))

	mod, err := db.NewSimpleMod(ctx.Version, ctx.Loader, identifier)
	if err != nil {
		return nil, &EntryError{Key: identifier, Err: err}
	}
	return mod, nil
}

func (p *Parser) withDefaults(ctx Context) Context {
	if ctx.Version == "" {
		ctx.Version = p.defaults.Version
	}
	if ctx.Loader == "" {
		ctx.Loader = p.defaults.Loader
	}
	return ctx
}

// --- flat text ---

// parseText is the fallback for input that is not JSON: newline
// separated identifiers or comma separated detail rows.
func (p *Parser) parseText(raw string) ([]*db.Mod, error) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, &FormatError{Reason: "empty mods list"}
	}

	if len(lines) == 1 {
		var mods []*db.Mod
		for _, token := range strings.Split(lines[0], ",") {
			mod, err := p.parseSimpleIdentifier(token, p.defaults)
			if err != nil {
				return nil, err
			}
			mods = append(mods, mod)
		}
		return mods, nil
	}

	if textIsSingleDepth(lines) {
		mods := make([]*db.Mod, 0, len(lines))
		for _, line := range lines {
			mod, err := p.parseSimpleIdentifier(line, p.defaults)
			if err != nil {
				return nil, err
			}
			mods = append(mods, mod)
		}
		return mods, nil
	}

	mods := make([]*db.Mod, 0, len(lines))
	for _, line := range lines {
		mod, err := p.parseRow(line, p.defaults)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

// textIsSingleDepth samples half the lines: when none contain a comma
// the list is bare identifiers, otherwise detail rows.
func textIsSingleDepth(lines []string) bool {
	for _, line := range sample(lines) {
		if strings.Contains(line, ",") {
			return false
		}
	}
	return true
}

// Subtype-specific field maxima for detail rows, tag field excluded:
// name, file name, version id, source and (API only) mod id.
const (
	maxCustomRowFields = 4
	maxAPIRowFields    = 5
)

// parseRow parses one comma separated detail row. An optional
// double-quoted tag field sits before the source column; it is cut out
// before the comma split so tag commas cannot shift the other columns.
func (p *Parser) parseRow(line string, ctx Context) (*db.Mod, error) {
	var tags []string
	switch strings.Count(line, `"`) {
	case 0:
	case 2:
		open := strings.Index(line, `"`)
		end := strings.LastIndex(line, `"`)
		for _, tag := range strings.Split(line[open+1:end], ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		line = line[:open] + line[end+1:]
	default:
		return nil, &EntryError{Key: line, Err: fmt.Errorf("unbalanced quotes in row")}
	}

	var fields []string
	for _, field := range strings.Split(line, ",") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	return p.parseRowFields(fields, tags, ctx)
}

// parseRowFields applies the detail-row column rules to an already
// split field list: name, file name, version id, source and (API rows
// only) an optional mod id.
func (p *Parser) parseRowFields(fields, tags []string, ctx Context) (*db.Mod, error) {
	if len(fields) < 4 {
		return nil, &EntryError{Key: strings.Join(fields, ","), Err: fmt.Errorf("row needs name, file name, version id and source")}
	}

	name, fileName, versionID, source := fields[0], fields[1], fields[2], fields[3]

	sourceIsAPI := strings.EqualFold(source, "curseforge") ||
		strings.HasPrefix(strings.ToUpper(source), "FO") ||
		strings.EqualFold(source, "modrinth")
	maxFields := maxCustomRowFields
	if sourceIsAPI {
		maxFields = maxAPIRowFields
	}
	if len(fields) > maxFields {
		return nil, &EntryError{Key: name, Err: fmt.Errorf("row has %d fields, at most %d allowed", len(fields), maxFields)}
	}

	modID := ""
	if sourceIsAPI && len(fields) == maxAPIRowFields {
		modID = fields[4]
	}

	if version, ok := mcversion.VersionFromName(fileName); ok {
		ctx.Version = version
	}
	if loader, ok := mcversion.LoaderFromName(fileName); ok {
		ctx.Loader = loader
	}
	ctx = p.withDefaults(ctx)

	mod, err := p.buildDetailedMod(ctx, name, fileName, versionID, source, modID, tags, false)
	if err != nil {
		return nil, &EntryError{Key: name, Err: err}
	}
	return mod, nil
}

// Package mcversion holds the Minecraft version and mod-loader grammars
// shared by the catalog parser, the record store and the sync engine.
package mcversion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Loader identifies the mod loader a mod is built against.
type Loader string

const (
	Forge  Loader = "FO"
	Fabric Loader = "FA"
	Quilt  Loader = "QU"
)

// Name returns the human-readable loader name.
func (l Loader) Name() string {
	switch l {
	case Forge:
		return "Forge"
	case Fabric:
		return "Fabric"
	case Quilt:
		return "Quilt"
	}
	return string(l)
}

// ParseLoader accepts a loader name in any casing ("fabric", "Quilt",
// "FO", ...). Only the first two letters are significant.
func ParseLoader(s string) (Loader, error) {
	if len(s) >= 2 {
		switch Loader(strings.ToUpper(s)[:2]) {
		case Forge:
			return Forge, nil
		case Fabric:
			return Fabric, nil
		case Quilt:
			return Quilt, nil
		}
	}
	return "", fmt.Errorf("invalid mod loader %q (must be one of Forge, Fabric or Quilt)", s)
}

var (
	sanitisedRe   = regexp.MustCompile(`^1\.[1-9]\d{0,2}\.(?:0|[1-9]\d?)$`)
	unsanitisedRe = regexp.MustCompile(`^0*1\.0*[1-9]\d{0,2}(?:\.0*(?:0|[1-9]\d?))?$`)
	embeddedRe    = regexp.MustCompile(`1\.[1-9]\d{0,2}(?:\.\d{1,2})?`)
)

// IsCanonical reports whether v is already a canonical "1.X.Y" release
// version string.
func IsCanonical(v string) bool {
	return sanitisedRe.MatchString(v)
}

// Canonicalize normalises a declared Minecraft version into the
// canonical three-part form, stripping leading zeroes and completing a
// missing patch component ("01.16" -> "1.16.0"). It is idempotent on
// already-canonical input and errors on anything outside the release
// version grammar.
func Canonicalize(v string) (string, error) {
	if sanitisedRe.MatchString(v) {
		return v, nil
	}
	if !unsanitisedRe.MatchString(v) {
		return "", fmt.Errorf("invalid minecraft version %q", v)
	}

	parts := strings.SplitN(v, ".", 3)
	for i, part := range parts {
		stripped := strings.TrimLeft(part, "0")
		if stripped == "" {
			stripped = "0"
		}
		parts[i] = stripped
	}
	if len(parts) == 2 {
		parts = append(parts, "0")
	}
	return strings.Join(parts, "."), nil
}

// Fallbacks returns the declining sequence of acceptable version
// strings for a canonical version: the version itself, each earlier
// patch release of the same minor version down to .1, then the bare
// major.minor string. Clients try these left to right and commit to
// the first one yielding any remote result.
func Fallbacks(v string) []string {
	parts := strings.SplitN(v, ".", 3)
	out := []string{v}
	if len(parts) != 3 {
		return out
	}
	major := parts[0] + "." + parts[1]
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return out
	}
	for n := patch - 1; n >= 1; n-- {
		out = append(out, fmt.Sprintf("%s.%d", major, n))
	}
	return append(out, major)
}

// LoaderFromName infers a loader from a file or version name by the
// conventional FA/QU/FO substrings ("fabric-loader-...", "quilt...",
// "forge-...").
func LoaderFromName(name string) (Loader, bool) {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "FA"):
		return Fabric, true
	case strings.Contains(upper, "QU"):
		return Quilt, true
	case strings.Contains(upper, "FO"):
		return Forge, true
	}
	return "", false
}

// VersionFromName extracts an embedded game version from a file or
// version name ("sodium-fabric-1.20.4.jar" -> "1.20.4"). The result is
// canonicalised; two-part matches gain a ".0" patch component.
func VersionFromName(name string) (string, bool) {
	match := embeddedRe.FindString(name)
	if match == "" {
		return "", false
	}
	canonical, err := Canonicalize(match)
	if err != nil {
		return "", false
	}
	return canonical, true
}

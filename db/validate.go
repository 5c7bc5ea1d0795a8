package db

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	minNameLength    = 2
	maxNameLength    = 65
	minShortIDLength = 2
	maxShortIDLength = 20
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z](?:[A-Za-z0-9 .\-_]*[A-Za-z0-9])?$`)
	shortIDRe    = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	tagRe        = regexp.MustCompile(`^[a-z]{2,}$`)
)

// FieldError reports a single invalid field value on a would-be record.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func validateIdentifier(field, value string) error {
	if len(value) < minNameLength || len(value) > maxNameLength {
		return &FieldError{Field: field, Value: value, Reason: fmt.Sprintf("must be %d-%d characters", minNameLength, maxNameLength)}
	}
	if !identifierRe.MatchString(value) {
		return &FieldError{Field: field, Value: value, Reason: "does not match the identifier grammar"}
	}
	return nil
}

func validateName(name string) error {
	return validateIdentifier("name", name)
}

func validateShortID(field, value string) error {
	if len(value) < minShortIDLength || len(value) > maxShortIDLength {
		return &FieldError{Field: field, Value: value, Reason: fmt.Sprintf("must be %d-%d characters", minShortIDLength, maxShortIDLength)}
	}
	if !shortIDRe.MatchString(value) {
		return &FieldError{Field: field, Value: value, Reason: "must be alphanumeric"}
	}
	return nil
}

func validateTag(tag string) error {
	if !tagRe.MatchString(tag) {
		return &FieldError{Field: "tag", Value: tag, Reason: "must be at least two lowercase letters"}
	}
	return nil
}

func validateFileName(fileName string) error {
	if !strings.HasSuffix(fileName, ".jar") {
		return &FieldError{Field: "file_name", Value: fileName, Reason: "must end with .jar"}
	}
	if len(fileName) > maxNameLength {
		return &FieldError{Field: "file_name", Value: fileName, Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	if !fileNameIsValid(fileName) {
		return &FieldError{Field: "file_name", Value: fileName, Reason: "is not a valid file name"}
	}
	return nil
}

// fileNameIsValid rejects path separators, reserved characters and
// control characters, so a record can never escape the mods directory.
func fileNameIsValid(fileName string) bool {
	if fileName == "" || fileName == "." || fileName == ".." {
		return false
	}
	if strings.ContainsAny(fileName, `/\<>:"|?*`) {
		return false
	}
	for _, r := range fileName {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &FieldError{Field: "download_url", Value: raw, Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

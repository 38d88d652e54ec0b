package domain

import "regexp"

const maxIDLength = 128

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-:.]*$`)

// ValidateID checks that an identifier supplied by a caller is present and
// well formed. IDs are opaque to this system but must be safe to use as
// keys, log fields, and lock names.
func ValidateID(field, id string) error {
	if id == "" {
		return Invalid(field, "is required")
	}
	if len(id) > maxIDLength {
		return Invalid(field, "is too long")
	}
	if !idPattern.MatchString(id) {
		return Invalid(field, "is malformed")
	}
	return nil
}

// ValidateOptionalID is ValidateID for fields that may be omitted.
func ValidateOptionalID(field, id string) error {
	if id == "" {
		return nil
	}
	return ValidateID(field, id)
}

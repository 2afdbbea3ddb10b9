package errors

import (
	"strings"
	"unicode"
)

// maxIDLength bounds object identifiers so they stay usable as map keys,
// URL path segments and cache key parts.
const maxIDLength = 256

// ValidateID validates the identifier of a shape, pin, connector or session.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or whitespace
//   - No slashes (ids appear in HTTP paths)
//   - Maximum length of 256 characters
func ValidateID(kind, id string) error {
	if id == "" {
		return New(ErrCodeConfiguration, "%s id cannot be empty", kind)
	}

	if len(id) > maxIDLength {
		return New(ErrCodeConfiguration, "%s id too long (max %d characters)", kind, maxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeConfiguration, "%s id %q contains whitespace or control characters", kind, id)
		}
	}

	if strings.ContainsAny(id, "/\\") {
		return New(ErrCodeConfiguration, "%s id %q cannot contain slashes", kind, id)
	}

	return nil
}

// ValidatePath validates a scene or output file path given on the command
// line or through the API.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	return nil
}

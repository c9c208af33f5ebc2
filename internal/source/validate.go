package source

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidArgument marks a caller-supplied value that failed validation
// before reaching the engine.
var ErrInvalidArgument = errors.New("invalid argument")

// Identifiers are interpolated into SQL double-quoted; paths into SQL
// single-quoted literals. The patterns reject anything that could break out
// of the quoting. Globs like ./data/*.parquet are legitimate path input, so
// paths only reject quotes, semicolons, and comment dashes.
var (
	safeIdentifierRe    = regexp.MustCompile(`^[\w][\w\s\-.]*$`)
	dangerousSequenceRe = regexp.MustCompile(`--|/\*|\*/`)
)

func ValidateIdentifier(value, label string) (string, error) {
	stripped := strings.TrimSpace(value)
	if stripped == "" {
		return "", fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, label)
	}
	if !safeIdentifierRe.MatchString(stripped) {
		return "", fmt.Errorf("%w: %s %q: only letters, digits, underscores, hyphens, spaces, and dots are allowed", ErrInvalidArgument, label, stripped)
	}
	if dangerousSequenceRe.MatchString(stripped) {
		return "", fmt.Errorf("%w: %s %q: contains disallowed character sequences", ErrInvalidArgument, label, stripped)
	}
	return stripped, nil
}

func ValidatePath(value, label string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, label)
	}
	if strings.ContainsAny(value, `'";`) {
		return "", fmt.Errorf("%w: %s %q: quotes and semicolons are not allowed", ErrInvalidArgument, label, value)
	}
	if strings.Contains(value, "--") {
		return "", fmt.Errorf("%w: %s %q: contains disallowed character sequences", ErrInvalidArgument, label, value)
	}
	return value, nil
}

package server

import (
	"errors"
	"fmt"

	"github.com/datasleuth/datasleuth/internal/source"
)

// Error kinds reported at the tool boundary. Handlers never panic and never
// take the process down; every failure becomes a structured "KIND: message"
// tool error for the calling agent.
const (
	kindDuplicateName  = "DUPLICATE_NAME"
	kindUnknownSource  = "UNKNOWN_SOURCE"
	kindUnknownTable   = "UNKNOWN_TABLE"
	kindAmbiguousTable = "AMBIGUOUS_TABLE"
	kindInvalidPath    = "INVALID_PATH"
	kindInvalidInput   = "INVALID_ARGUMENT"
	kindQueryError     = "QUERY_EXECUTION_ERROR"
	kindExportError    = "EXPORT_ERROR"
)

func classify(err error) string {
	switch {
	case errors.Is(err, source.ErrDuplicateName):
		return kindDuplicateName
	case errors.Is(err, source.ErrUnknownSource):
		return kindUnknownSource
	case errors.Is(err, source.ErrUnknownTable):
		return kindUnknownTable
	case errors.Is(err, source.ErrAmbiguousTable):
		return kindAmbiguousTable
	case errors.Is(err, source.ErrInvalidPath):
		return kindInvalidPath
	case errors.Is(err, source.ErrInvalidArgument):
		return kindInvalidInput
	default:
		return kindQueryError
	}
}

// toolError wraps a failure with its classified kind.
func toolError(err error) error {
	return fmt.Errorf("%s: %s", classify(err), err.Error())
}

func toolErrorKind(kind string, err error) error {
	return fmt.Errorf("%s: %s", kind, err.Error())
}

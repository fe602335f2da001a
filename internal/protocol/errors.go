package protocol

import (
	"errors"

	"brickforge.ai/internal/fault"
)

const (
	// Protocol/transport validation.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrNotFound   = "E_NOT_FOUND"

	// Engine failures, one per fault kind.
	ErrValidation  = "E_VALIDATION"
	ErrGeometry    = "E_GEOMETRY"
	ErrIO          = "E_IO"
	ErrUnsupported = "E_UNSUPPORTED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:  {},
	ErrNotFound:    {},
	ErrValidation:  {},
	ErrGeometry:    {},
	ErrIO:          {},
	ErrUnsupported: {},
	ErrInternal:    {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an engine error to its protocol code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fault.ErrValidation):
		return ErrValidation
	case errors.Is(err, fault.ErrGeometry):
		return ErrGeometry
	case errors.Is(err, fault.ErrIO):
		return ErrIO
	case errors.Is(err, fault.ErrUnsupported):
		return ErrUnsupported
	default:
		return ErrInternal
	}
}

// Package fault classifies engine errors so callers can map them to protocol
// codes without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the error class of an engine failure.
type Kind string

const (
	// KindValidation covers malformed bounds, disallowed discrete values,
	// empty required input and over-limit counts. No side effects happened.
	KindValidation Kind = "validation"
	// KindGeometry means there is nothing to encode; no file was written.
	KindGeometry Kind = "geometry"
	// KindIO means a write failed; no partial artifact is visible.
	KindIO Kind = "io"
	// KindUnsupported means a preferred backend is missing. Exporters degrade
	// instead of failing.
	KindUnsupported Kind = "unsupported"
)

// Sentinels for errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrGeometry    = &Error{Kind: KindGeometry}
	ErrIO          = &Error{Kind: KindIO}
	ErrUnsupported = &Error{Kind: KindUnsupported}
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels compare by class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func Validationf(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Geometryf(op, format string, args ...any) error {
	return &Error{Kind: KindGeometry, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Unsupportedf(op, format string, args ...any) error {
	return &Error{Kind: KindUnsupported, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IO wraps a filesystem or writer failure.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, Op: op, Msg: "write failed", Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

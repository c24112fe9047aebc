package errors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Wrap puts err behind a new LivepenError. When err already is one, its
// context, component, file and recoverability carry over.
func Wrap(err error, errType ErrorType, code, message string) *LivepenError {
	if err == nil {
		return nil
	}

	wrapped := newError(errType, code, message, err)

	var le *LivepenError
	if errors.As(err, &le) {
		wrapped.Context = maps.Clone(le.Context)
		wrapped.Component = le.Component
		wrapped.FilePath = le.FilePath
		wrapped.Recoverable = le.Recoverable
	}
	return wrapped
}

// WrapConfig wraps err as a non-recoverable configuration error.
func WrapConfig(err error, code, message string) *LivepenError {
	return wrapFatal(err, ErrorTypeConfig, code, message)
}

// WrapIO wraps err as a non-recoverable I/O error.
func WrapIO(err error, code, message string) *LivepenError {
	return wrapFatal(err, ErrorTypeIO, code, message)
}

func wrapFatal(err error, errType ErrorType, code, message string) *LivepenError {
	le := Wrap(err, errType, code, message)
	if le != nil {
		le.Recoverable = false
	}
	return le
}

// FormatError renders err for the terminal. When the chain holds a
// LivepenError its type prefixes the message and its context follows, one
// indented line per key in sorted order.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var le *LivepenError
	if !errors.As(err, &le) {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s error: %s", le.Type, err.Error())
	for _, k := range slices.Sorted(maps.Keys(le.Context)) {
		fmt.Fprintf(&b, "\n  %s: %v", k, le.Context[k])
	}
	return b.String()
}

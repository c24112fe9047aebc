// Package errors defines the structured error type shared across livepen.
//
// A LivepenError carries a category, a stable code, an optional cause and
// free-form context. Style compile failures, configuration problems and
// security rejections are all reported through it so callers can decide
// with IsRecoverable or IsBuildError whether to degrade or abort.
package errors

import (
	"errors"
	"strings"
)

// ErrorType is the category of a LivepenError.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Recoverable reports whether errors of this type leave the editor usable.
// A bad edit or a failed compile only degrades the preview.
func (t ErrorType) Recoverable() bool {
	return t == ErrorTypeValidation || t == ErrorTypeBuild
}

// LivepenError is a categorized error with an optional cause.
type LivepenError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Recoverable bool
}

func newError(t ErrorType, code, message string, cause error) *LivepenError {
	return &LivepenError{
		Type:        t,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: t.Recoverable(),
	}
}

// Error renders "CODE: component: file: message: cause", skipping empty
// parts.
func (e *LivepenError) Error() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{e.Code, e.Component, e.FilePath, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *LivepenError) Unwrap() error {
	return e.Cause
}

// Is matches another LivepenError with the same type and code.
func (e *LivepenError) Is(target error) bool {
	var t *LivepenError
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext attaches a key/value pair and returns e.
func (e *LivepenError) WithContext(key string, value interface{}) *LivepenError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithFile records the file the error relates to.
func (e *LivepenError) WithFile(filePath string) *LivepenError {
	e.FilePath = filePath
	return e
}

// WithComponent records the component that failed.
func (e *LivepenError) WithComponent(component string) *LivepenError {
	e.Component = component
	return e
}

func NewValidationError(code, message string) *LivepenError {
	return newError(ErrorTypeValidation, code, message, nil)
}

func NewSecurityError(code, message string) *LivepenError {
	return newError(ErrorTypeSecurity, code, message, nil)
}

func NewBuildError(code, message string, cause error) *LivepenError {
	return newError(ErrorTypeBuild, code, message, cause)
}

func NewIOError(code, message string, cause error) *LivepenError {
	return newError(ErrorTypeIO, code, message, cause)
}

func NewConfigError(code, message string) *LivepenError {
	return newError(ErrorTypeConfig, code, message, nil)
}

// IsRecoverable reports whether err is a LivepenError marked recoverable.
// Plain errors are not.
func IsRecoverable(err error) bool {
	var le *LivepenError
	return errors.As(err, &le) && le.Recoverable
}

func IsSecurityError(err error) bool { return isType(err, ErrorTypeSecurity) }

func IsBuildError(err error) bool { return isType(err, ErrorTypeBuild) }

func isType(err error, t ErrorType) bool {
	var le *LivepenError
	return errors.As(err, &le) && le.Type == t
}

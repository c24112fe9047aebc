package errors

import (
	"context"
	"errors"
)

// Logger is the part of logging.Logger the handler writes to.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler logs errors at a level matching their type: recoverable
// ones as warnings, the rest as errors.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var le *LivepenError
	if !errors.As(err, &le) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", le.Type, "code", le.Code}
	if le.Component != "" {
		fields = append(fields, "component", le.Component)
	}
	if le.FilePath != "" {
		fields = append(fields, "file", le.FilePath)
	}

	switch le.Type {
	case ErrorTypeBuild:
		h.logger.Warn(ctx, le, "Build error occurred", fields...)
	case ErrorTypeValidation:
		h.logger.Warn(ctx, le, "Validation error occurred", fields...)
	default:
		h.logger.Error(ctx, le, "Error occurred", fields...)
	}
}

package errors

// Stable error codes. They are returned to browsers in API error bodies.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeCommandInjection = "ERR_COMMAND_INJECTION"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeInvalidURL       = "ERR_INVALID_URL"
	ErrCodeCompileFailed    = "ERR_COMPILE_FAILED"
	ErrCodeCompilerMissing  = "ERR_COMPILER_MISSING"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeInvalidTab       = "ERR_INVALID_TAB"
	ErrCodeInvalidMessage   = "ERR_INVALID_MESSAGE"
)

func ErrPathTraversal(path string) *LivepenError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

func ErrInvalidOrigin(origin string) *LivepenError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}

// ErrCompileFailed reports a failed style build by engine.
func ErrCompileFailed(engine string, cause error) *LivepenError {
	return NewBuildError(ErrCodeCompileFailed, "style compile failed", cause).
		WithComponent(engine)
}

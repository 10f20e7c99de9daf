package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// AppError is the unified error type returned by every cmdproxy package.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrTemplate    = &AppError{Code: ErrCodeTemplate}
	ErrDeclaration = &AppError{Code: ErrCodeDeclaration}
	ErrConfig      = &AppError{Code: ErrCodeConfig}
	ErrBinding     = &AppError{Code: ErrCodeBinding}
	ErrExecution   = &AppError{Code: ErrCodeExecution}
	ErrTimeout     = &AppError{Code: ErrCodeTimeout}
	ErrResult      = &AppError{Code: ErrCodeResult}
)

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// TemplateError reports a command template that cannot be compiled.
func TemplateError(template, reason string) *AppError {
	return &AppError{
		Code: ErrCodeTemplate, Message: fmt.Sprintf("invalid command template: %s", reason),
		Details: map[string]any{"template": template},
	}
}

// DeclarationError reports a method declaration that cannot be compiled.
func DeclarationError(method, reason string) *AppError {
	details := make(map[string]any)
	if method != "" {
		details["method"] = method
	}
	return &AppError{
		Code: ErrCodeDeclaration, Message: fmt.Sprintf("invalid declaration: %s", reason),
		Details: details,
	}
}

// ConfigError reports configuration that fails validation.
func ConfigError(reason string) *AppError {
	return &AppError{Code: ErrCodeConfig, Message: fmt.Sprintf("invalid configuration: %s", reason)}
}

// BindingError reports call arguments that do not match the declaration.
func BindingError(method, param, reason string) *AppError {
	details := map[string]any{"method": method}
	if param != "" {
		details["param"] = param
	}
	return &AppError{
		Code: ErrCodeBinding, Message: fmt.Sprintf("cannot bind arguments: %s", reason),
		Details: details,
	}
}

// ExecutionError reports a process that could not be started.
func ExecutionError(command string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExecution, Message: fmt.Sprintf("failed to execute %s", command),
		Retryable: true, Details: map[string]any{"command": command}, Cause: cause,
	}
}

// Timeout reports a process that was killed after exceeding its deadline.
func Timeout(command string, after time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s did not complete within %s", command, after),
		Details: map[string]any{"command": command, "timeout_ms": after.Milliseconds()},
	}
}

// ResultError reports process output the result builder rejected.
func ResultError(method string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeResult, Message: fmt.Sprintf("cannot build result of %s", method),
		Details: map[string]any{"method": method}, Cause: cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsTemplate reports whether err is a template error.
func IsTemplate(err error) bool { return stderrors.Is(err, ErrTemplate) }

// IsDeclaration reports whether err is a declaration error.
func IsDeclaration(err error) bool { return stderrors.Is(err, ErrDeclaration) }

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return stderrors.Is(err, ErrConfig) }

// IsBinding reports whether err is a binding error.
func IsBinding(err error) bool { return stderrors.Is(err, ErrBinding) }

// IsExecution reports whether err is an execution error.
func IsExecution(err error) bool { return stderrors.Is(err, ErrExecution) }

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool { return stderrors.Is(err, ErrTimeout) }

// IsResult reports whether err is a result materialization error.
func IsResult(err error) bool { return stderrors.Is(err, ErrResult) }

// IsRetryable reports whether err carries a retryable AppError.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

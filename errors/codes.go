package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Compile-time errors. They abort proxy construction.
const (
	// ErrCodeTemplate indicates a malformed or mis-parameterized command template.
	ErrCodeTemplate ErrorCode = "TEMPLATE_INVALID"
	// ErrCodeDeclaration indicates conflicting or missing method declarations.
	ErrCodeDeclaration ErrorCode = "DECLARATION_INVALID"
	// ErrCodeConfig indicates invalid engine or proxy configuration.
	ErrCodeConfig ErrorCode = "CONFIG_INVALID"
)

// Call-time errors. They are local to one call.
const (
	// ErrCodeBinding indicates call arguments that do not fit the declaration.
	ErrCodeBinding ErrorCode = "BINDING_INVALID"
	// ErrCodeExecution indicates the external process could not be started.
	ErrCodeExecution ErrorCode = "EXECUTION_FAILED"
	// ErrCodeTimeout indicates the process did not finish before its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeResult indicates captured output that could not be materialized.
	ErrCodeResult ErrorCode = "RESULT_INVALID"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeExecution: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

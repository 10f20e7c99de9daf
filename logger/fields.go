package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent    = "component"
	FieldInvocationID = "invocation_id"
	FieldInterface    = "interface"
	FieldMethod       = "method"
	FieldCommand      = "command"
	FieldDir          = "dir"
	FieldPid          = "pid"
	FieldExitCode     = "exit_code"
	FieldState        = "state"
	FieldStream       = "stream"
	FieldBytes        = "bytes"
	FieldTimeout      = "timeout_ms"
	FieldAttempt      = "attempt"
	FieldError        = "error"
	FieldErrorCode    = "error_code"
	FieldDuration     = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Debug("pump finished", logger.Fields(logger.FieldStream, "stdout", logger.FieldBytes, n))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(method string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldMethod: method,
		FieldError:  err.Error(),
	}
}

// DurationFields creates fields for a timed invocation.
func DurationFields(method string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldMethod:   method,
		FieldDuration: d.Milliseconds(),
	}
}

// MergeWithError adds an error field to an existing map.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldError] = err.Error()
	return fields
}

// MergeWithDuration adds a duration field to an existing map.
func MergeWithDuration(fields map[string]interface{}, d time.Duration) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldDuration] = d.Milliseconds()
	return fields
}

// Package logger provides structured logging for cmdproxy using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers. The engine logs every invocation at debug level
// and uses the "pump" component logger as the diagnostic channel for stream
// copy failures.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("process")
//	log.Debug("process started", logger.Fields(logger.FieldPid, pid))
package logger

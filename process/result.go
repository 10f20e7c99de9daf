package process

import "time"

// Result describes how a run ended.
type Result struct {
	// Pid is the process id. Zero if the process never started.
	Pid int
	// State is the terminal state of the run.
	State State
	// ExitCode is the process exit code. -1 if the process was killed or
	// never started.
	ExitCode int
	// Stdout is the number of bytes delivered to Command.Stdout.
	Stdout int64
	// Stderr holds captured error output under StderrSeparate, truncated to
	// MaxStderrCapture bytes.
	Stderr []byte
	// Duration is the wall time from start to exit.
	Duration time.Duration
}

// Success reports whether the process ran to completion with exit code 0.
func (r *Result) Success() bool {
	return r != nil && r.State == StateCompleted && r.ExitCode == 0
}

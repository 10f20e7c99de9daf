package process

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Policy decides what happens to the standard error stream of a process.
type Policy int

const (
	// StderrDiscard connects stderr to the null device.
	StderrDiscard Policy = iota
	// StderrMerge pumps stderr into the same sink as stdout.
	StderrMerge
	// StderrSeparate captures stderr into Result.Stderr.
	StderrSeparate
)

// String returns the policy name as used in configuration.
func (p Policy) String() string {
	switch p {
	case StderrDiscard:
		return "discard"
	case StderrMerge:
		return "merge"
	case StderrSeparate:
		return "separate"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name. The empty string means StderrDiscard.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discard":
		return StderrDiscard, nil
	case "merge":
		return StderrMerge, nil
	case "separate":
		return StderrSeparate, nil
	default:
		return StderrDiscard, fmt.Errorf("process: unknown stderr policy %q", s)
	}
}

// Command configures a subprocess to execute.
type Command struct {
	// Binary is the executable path or name (resolved via PATH).
	Binary string
	// Args are the command-line arguments, passed without shell interpretation.
	Args []string
	// Dir is the working directory. Empty falls back to the engine default,
	// then to the current directory.
	Dir string
	// Stdin provides input to the process. Nil connects the null device.
	Stdin io.Reader
	// Stdout receives everything the process writes to stdout. Nil discards.
	Stdout io.Writer
	// ResetOutput, if set, discards what Stdout holds. Runner calls it before
	// relaunching a failed attempt.
	ResetOutput func()
	// Stderr selects the error stream policy.
	Stderr Policy
	// Timeout bounds the run. Zero falls back to the engine default; if that
	// is zero too the run has no deadline.
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Args, " ")
}

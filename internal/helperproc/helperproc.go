// Package helperproc lets tests use their own binary as the external program.
//
// A test package installs Main as its TestMain. When the binary is
// re-executed with Argv, Main runs the requested mode instead of the tests:
//
//	func TestMain(m *testing.M) { helperproc.Main(m) }
//
//	cmd := process.Command{Binary: helperproc.Binary(), Args: helperproc.Argv("concat", "a", "b")}
package helperproc

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"
)

// Sentinel marks a re-executed test binary.
const Sentinel = "-cmdproxy.helper"

// Nothing is what concat prints when it receives no arguments.
const Nothing = "nothing"

// Modes understood by the helper.
const (
	// Concat prints its arguments joined without separator, or Nothing.
	Concat = "concat"
	// PWD prints args[0], the working directory, then args[1].
	PWD = "pwd"
	// Forever blocks until killed. An optional argument names a file that
	// receives the pid.
	Forever = "forever"
	// Streams prints args[0] to stdout and args[1] to stderr.
	Streams = "streams"
	// Args prints its argument vector as a JSON array.
	Args = "args"
	// Exit prints args[1] to stderr and exits with code args[0].
	Exit = "exit"
	// Flood writes args[0] KiB to stdout and stderr concurrently.
	Flood = "flood"
	// Spawn starts a Forever grandchild that writes its pid to args[0] and
	// inherits stdout, then blocks until killed.
	Spawn = "spawn"
	// Linger starts a Forever grandchild like Spawn, prints args[1] and exits
	// while the grandchild keeps stdout open.
	Linger = "linger"
	// Echo copies stdin to stdout.
	Echo = "echo"
)

// Main runs a helper mode if the binary was re-executed, otherwise the tests.
func Main(m *testing.M) {
	if len(os.Args) > 2 && os.Args[1] == Sentinel {
		os.Exit(run(os.Args[2], os.Args[3:]))
	}
	os.Exit(m.Run())
}

// Binary returns the path of the running test binary.
func Binary() string {
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return exe
}

// Argv returns the arguments that re-execute the test binary in mode.
func Argv(mode string, args ...string) []string {
	return append([]string{Sentinel, mode}, args...)
}

// Command returns the full command line for mode, suitable for a template.
// Paths containing whitespace are quoted.
func Command(mode string) string {
	bin := Binary()
	if strings.ContainsAny(bin, " \t") {
		bin = `"` + bin + `"`
	}
	return bin + " " + Sentinel + " " + mode
}

// WaitForPid polls path until it holds a pid or the timeout elapses.
func WaitForPid(path string, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			if pid, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr == nil && pid > 0 {
				return pid, nil
			}
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("no pid in %s after %v", path, timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func run(mode string, args []string) int {
	switch mode {
	case Concat:
		if len(args) == 0 {
			fmt.Print(Nothing)
			return 0
		}
		fmt.Print(strings.Join(args, ""))
	case PWD:
		wd, _ := os.Getwd()
		fmt.Print(arg(args, 0) + wd + arg(args, 1))
	case Forever:
		if path := arg(args, 0); path != "" {
			writePid(path)
		}
		select {}
	case Streams:
		fmt.Fprint(os.Stdout, arg(args, 0))
		fmt.Fprint(os.Stderr, arg(args, 1))
	case Args:
		_ = json.NewEncoder(os.Stdout).Encode(args)
	case Exit:
		code, _ := strconv.Atoi(arg(args, 0))
		fmt.Fprint(os.Stderr, arg(args, 1))
		return code
	case Flood:
		kib, _ := strconv.Atoi(arg(args, 0))
		flood(kib)
	case Spawn:
		if err := spawnForever(arg(args, 0)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		select {}
	case Linger:
		if err := spawnForever(arg(args, 0)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		fmt.Print(arg(args, 1))
	case Echo:
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			os.Stdout.Write(buf[:n])
			if err != nil {
				break
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		return 2
	}
	return 0
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func writePid(path string) {
	tmp := path + ".tmp"
	_ = os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())), 0o600)
	_ = os.Rename(tmp, path)
}

func spawnForever(pidFile string) error {
	c := exec.Command(Binary(), Argv(Forever, pidFile)...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Start()
}

func flood(kib int) {
	chunk := []byte(strings.Repeat("x", 1023) + "\n")
	done := make(chan struct{})
	go func() {
		for range kib {
			os.Stderr.Write(chunk)
		}
		close(done)
	}()
	for range kib {
		os.Stdout.Write(chunk)
	}
	<-done
}

// Package process runs one external process per call and reports how it
// ended.
//
// An Engine launches the binary in its own process group, pumps its output
// streams concurrently into the caller's sink, and races process exit against
// a deadline. On deadline the whole group is killed with SIGKILL and the run
// fails with a TIMEOUT error; no partial output is reported.
//
//	engine := process.NewEngine(process.Config{DrainTimeout: time.Second})
//	var out bytes.Buffer
//	res, err := engine.Run(ctx, process.Command{
//	    Binary:  "ffprobe",
//	    Args:    []string{"-show_format", "in.mp4"},
//	    Stdout:  &out,
//	    Timeout: 10 * time.Second,
//	})
//
// A non-zero exit code is not an error; it is reported in Result.ExitCode.
package process

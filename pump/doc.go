// Package pump copies bytes from a live stream to a sink until the stream
// ends or the pump is told to stop.
//
// A Pump owns its stop flag and its sink for its lifetime. Stop is
// cooperative: it is observed between reads, so a pump blocked in Read only
// returns once the source yields data, reaches end-of-stream or is closed by
// its owner. Copy failures are reported to the diagnostic logger and end the
// pump as if the stream had ended.
//
//	p := pump.New("stdout", r, &buf)
//	p.Start()
//	...
//	p.Stop()
//	p.Wait()
package pump

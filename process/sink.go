package process

import (
	"io"
	"sync"
)

// MaxStderrCapture bounds the error output kept under StderrSeparate.
const MaxStderrCapture = 64 << 10

// lockedWriter serializes writes from several pumps into one sink.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// capBuffer keeps the first limit bytes written and silently drops the rest,
// so a chatty process never fails its stderr pump.
type capBuffer struct {
	buf   []byte
	limit int
}

func (c *capBuffer) Write(p []byte) (int, error) {
	if room := c.limit - len(c.buf); room > 0 {
		c.buf = append(c.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

func (c *capBuffer) Bytes() []byte {
	if len(c.buf) == 0 {
		return nil
	}
	return c.buf
}

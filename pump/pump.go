package pump

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kbukum/cmdproxy/logger"
)

// DefaultBufferSize is the size of the read buffer used by each pump.
const DefaultBufferSize = 4096

// Pump copies one stream into one sink.
type Pump struct {
	name    string
	src     io.Reader
	dst     io.Writer
	bufSize int
	log     *logger.Logger

	stop    atomic.Bool
	copied  atomic.Int64
	done    chan struct{}
	started sync.Once

	mu  sync.Mutex
	err error
}

// Option configures a Pump.
type Option func(*Pump)

// WithLogger sets the diagnostic logger copy failures are reported to.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pump) { p.log = l }
}

// WithBufferSize sets the read buffer size. Non-positive values are ignored.
func WithBufferSize(n int) Option {
	return func(p *Pump) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// New creates a pump named after the stream it copies ("stdout", "stderr").
func New(name string, src io.Reader, dst io.Writer, opts ...Option) *Pump {
	p := &Pump{
		name:    name,
		src:     src,
		dst:     dst,
		bufSize: DefaultBufferSize,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get("pump")
	}
	if p.dst == nil {
		p.dst = io.Discard
	}
	return p
}

// Name returns the stream name.
func (p *Pump) Name() string { return p.name }

// Start runs the copy loop on its own goroutine.
func (p *Pump) Start() {
	go p.Run()
}

// Run copies until end-of-stream, stop or failure. Only the first call
// copies anything; later calls wait for the first to finish.
func (p *Pump) Run() {
	first := false
	p.started.Do(func() { first = true })
	if !first {
		<-p.done
		return
	}
	defer close(p.done)

	buf := make([]byte, p.bufSize)
	for !p.stop.Load() {
		n, rerr := p.src.Read(buf)
		if n > 0 {
			if _, werr := p.dst.Write(buf[:n]); werr != nil {
				p.fail("write", werr)
				return
			}
			p.copied.Add(int64(n))
		}
		if rerr != nil {
			if !isEndOfStream(rerr) {
				p.fail("read", rerr)
			}
			return
		}
	}
}

// Stop asks the copy loop to return before its next read.
func (p *Pump) Stop() {
	p.stop.Store(true)
}

// Stopped reports whether Stop has been called.
func (p *Pump) Stopped() bool {
	return p.stop.Load()
}

// Wait blocks until the copy loop has returned.
func (p *Pump) Wait() {
	<-p.done
}

// Done returns a channel closed when the copy loop has returned.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Bytes returns the number of bytes delivered to the sink so far.
func (p *Pump) Bytes() int64 {
	return p.copied.Load()
}

// Err returns the copy failure that ended the pump, if any.
func (p *Pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pump) fail(op string, err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()

	p.log.Warn("stream copy failed", logger.Fields(
		logger.FieldStream, p.name,
		"op", op,
		logger.FieldBytes, p.copied.Load(),
		logger.FieldError, err.Error(),
	))
}

// isEndOfStream reports read errors that mean the source is gone rather
// than broken: EOF, or the owner closing the read end during teardown.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

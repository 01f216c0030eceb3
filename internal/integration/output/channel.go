package output

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/integration/termination"
)

// DefaultChunkSize is the read buffer used when none is configured.
const DefaultChunkSize = 4096

// DataFunc receives one chunk of process output.
type DataFunc func(chunk string)

// TerminateFunc receives the single termination event of a process.
type TerminateFunc func(ev termination.Event)

// Channel delivers the output and termination of one process.
//
// Channel is safe for concurrent use. Consumer callbacks are invoked one
// at a time and never after Close has delivered the termination event.
type Channel struct {
	mu sync.Mutex

	onData      DataFunc
	onTerminate TerminateFunc
	logger      *zap.Logger

	closed bool
	chunks int

	// recording captures delivered chunks until StopRecording.
	recording bool
	snapshot  strings.Builder
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger used to report recovered consumer panics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChannel creates a channel for the given consumer callbacks.
// Nil callbacks are treated as no-ops.
func NewChannel(onData DataFunc, onTerminate TerminateFunc, opts ...Option) *Channel {
	c := &Channel{
		onData:      onData,
		onTerminate: onTerminate,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver hands chunk to the consumer.
// Returns false if the channel is already closed; the chunk is not delivered.
func (c *Channel) Deliver(chunk string) bool {
	if chunk == "" {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	c.chunks++
	if c.recording {
		c.snapshot.WriteString(chunk)
	}

	if c.onData != nil {
		c.invoke("data", func() { c.onData(chunk) })
	}
	return true
}

// Close delivers ev to the consumer and closes the channel.
// Only the first call delivers; later calls return false.
func (c *Channel) Close(ev termination.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	c.recording = false

	if c.onTerminate != nil {
		c.invoke("terminate", func() { c.onTerminate(ev) })
	}
	return true
}

// Abort closes the channel without delivering a termination event.
// Used when a process never became visible to the consumer.
func (c *Channel) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.recording = false
}

// Closed reports whether the channel has been closed.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Chunks returns the number of chunks delivered so far.
func (c *Channel) Chunks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunks
}

// StartRecording begins capturing delivered chunks for a snapshot.
func (c *Channel) StartRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = true
	c.snapshot.Reset()
}

// StopRecording stops capturing and returns what was delivered meanwhile.
func (c *Channel) StopRecording() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	s := c.snapshot.String()
	c.snapshot.Reset()
	return s
}

// Pump reads r with a buffer of chunkSize bytes and delivers every read.
// It returns when r reports EOF or is closed; other read errors are returned.
func (c *Channel) Pump(r io.Reader, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.Deliver(string(buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// invoke runs a consumer callback, recovering panics so one bad consumer
// cannot take down the supervising goroutine.
func (c *Channel) invoke(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("output consumer panicked",
				zap.String("callback", kind),
				zap.Any("panic", r))
		}
	}()
	fn()
}

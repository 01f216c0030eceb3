package output

import (
	"strings"
	"sync"
)

// Accumulator is an append-only text buffer fed by output chunks.
// It is safe for concurrent use.
type Accumulator struct {
	mu  sync.RWMutex
	buf strings.Builder
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append adds chunk to the end of the buffer.
// Its signature matches DataFunc so it can be passed directly as a callback.
func (a *Accumulator) Append(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.WriteString(chunk)
}

// String returns everything appended so far.
func (a *Accumulator) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buf.String()
}

// Len returns the number of bytes appended so far.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buf.Len()
}

// Reset discards the buffer contents.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.Reset()
}

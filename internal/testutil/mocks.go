package testutil

import (
	"bytes"
	"errors"
	"sync"
)

// SafeBuffer is an io.Writer that can be shared by concurrent stage workers
// and loggers in tests.
type SafeBuffer struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	writeCount  int
	errorOnNth  int
	shouldError bool
	err         error
}

// NewSafeBuffer creates an empty SafeBuffer.
func NewSafeBuffer() *SafeBuffer {
	return &SafeBuffer{}
}

// Write implements io.Writer with optional injected failures.
func (sb *SafeBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.writeCount++

	if sb.shouldError {
		return 0, sb.err
	}
	if sb.errorOnNth > 0 && sb.writeCount == sb.errorOnNth {
		return 0, errors.New("mock write error")
	}

	return sb.buf.Write(p)
}

// String returns everything written so far.
func (sb *SafeBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.String()
}

// WriteCount returns the number of Write calls.
func (sb *SafeBuffer) WriteCount() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.writeCount
}

// SetErrorOnNth makes the nth Write fail.
func (sb *SafeBuffer) SetErrorOnNth(n int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.errorOnNth = n
}

// SetAlwaysError makes every Write fail with err.
func (sb *SafeBuffer) SetAlwaysError(err error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.shouldError = true
	sb.err = err
}

// Reset clears content, counters and injected failures.
func (sb *SafeBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buf.Reset()
	sb.writeCount = 0
	sb.errorOnNth = 0
	sb.shouldError = false
	sb.err = nil
}

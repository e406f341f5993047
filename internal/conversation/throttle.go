// ABOUTME: Fixed-window throttler for streaming response chunks
// ABOUTME: Buffers chunks and emits them at most once per interval

package conversation

import (
	"strings"
	"sync"
	"time"
)

// streamInterval is the fixed window between throttled emissions.
const streamInterval = 100 * time.Millisecond

// Throttler coalesces streamed text chunks so the projection is not
// republished for every token. Chunks accumulate in a buffer; at most
// once per interval the buffered text is handed to the emit callback.
// The concatenation of all emitted text equals the concatenation of
// all added chunks once Flush has run.
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	buf      strings.Builder
	timer    *time.Timer
	emit     func(string)
}

// NewThrottler creates a throttler with the given window. A zero or
// negative interval falls back to the default.
func NewThrottler(interval time.Duration, emit func(string)) *Throttler {
	if interval <= 0 {
		interval = streamInterval
	}
	return &Throttler{interval: interval, emit: emit}
}

// Add buffers a chunk. The first chunk after an emission arms the
// timer; subsequent chunks ride the same window.
func (t *Throttler) Add(chunk string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf.WriteString(chunk)
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval, t.fire)
	}
}

func (t *Throttler) fire() {
	t.mu.Lock()
	out := t.buf.String()
	t.buf.Reset()
	t.timer = nil
	t.mu.Unlock()

	if out != "" {
		t.emit(out)
	}
}

// Flush stops the timer and emits whatever is buffered. Call when the
// stream completes so no trailing text is lost.
func (t *Throttler) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	out := t.buf.String()
	t.buf.Reset()
	t.mu.Unlock()

	if out != "" {
		t.emit(out)
	}
}

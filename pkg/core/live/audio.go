package live

import (
	"context"
	"sync"
)

// PlaybackBuffer queues model audio for the speaker and tracks cumulative
// byte counters so transcript segments can be matched against what has
// actually been rendered. A single writer (the network path) appends and a
// single reader (the render callback) consumes; both are lock-guarded and
// O(1) amortized so the render callback never stalls.
type PlaybackBuffer struct {
	mu       sync.Mutex
	buf      []byte
	received int64
	played   int64
}

// NewPlaybackBuffer creates an empty playback buffer.
func NewPlaybackBuffer() *PlaybackBuffer {
	return &PlaybackBuffer{}
}

// Append queues a chunk of audio and advances the received counter.
func (b *PlaybackBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, chunk...)
	b.received += int64(len(chunk))
}

// Read pops up to n bytes from the head of the buffer and advances the
// played counter by the bytes actually returned. It never blocks; when the
// buffer is empty it returns nil and the caller must zero-fill.
func (b *PlaybackBuffer) Read(n int) []byte {
	if n <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	if n > len(b.buf) {
		n = len(b.buf)
	}
	out := make([]byte, n)
	copy(out, b.buf[:n])
	b.buf = b.buf[n:]
	b.played += int64(n)
	return out
}

// Clear discards all buffered audio. The played counter advances by the
// discarded amount so offset arithmetic stays monotonic for segments that
// were queued against the cancelled turn.
func (b *PlaybackBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.played += int64(len(b.buf))
	b.buf = b.buf[:0]
}

// ReceivedTotal returns the cumulative bytes appended.
func (b *PlaybackBuffer) ReceivedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

// PlayedTotal returns the cumulative bytes consumed (or discarded).
func (b *PlaybackBuffer) PlayedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.played
}

// Stats returns received, played, and currently buffered byte counts.
func (b *PlaybackBuffer) Stats() (received, played, buffered int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received, b.played, int64(len(b.buf))
}

// CaptureQueue is a fixed-capacity queue of outbound microphone frames.
// Push never blocks: on overflow the oldest frame is evicted, because
// capture audio only has near-real-time value and the capture callback
// must not stall.
type CaptureQueue struct {
	frames chan []byte
}

// NewCaptureQueue creates a queue holding at most capacity frames.
func NewCaptureQueue(capacity int) *CaptureQueue {
	if capacity <= 0 {
		capacity = 128
	}
	return &CaptureQueue{frames: make(chan []byte, capacity)}
}

// Push inserts a frame, evicting the oldest frame first if at capacity.
// It reports whether an older frame was dropped to make room.
func (q *CaptureQueue) Push(frame []byte) bool {
	select {
	case q.frames <- frame:
		return false
	default:
	}
	dropped := false
	select {
	case <-q.frames:
		dropped = true
	default:
	}
	select {
	case q.frames <- frame:
	default:
		dropped = true
	}
	return dropped
}

// Pop suspends until a frame is available or ctx is cancelled.
func (q *CaptureQueue) Pop(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-q.frames:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued frames.
func (q *CaptureQueue) Len() int {
	return len(q.frames)
}

// Cap returns the queue capacity.
func (q *CaptureQueue) Cap() int {
	return cap(q.frames)
}

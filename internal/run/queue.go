package run

import (
	"sync"

	"github.com/dshills/buildpane/internal/process"
)

// Queue is the bounded-latency, coalescing chunk queue between the
// stream-reader goroutines and the display scheduler.
//
// Every chunk belongs to the queue's current owner. Appending on behalf
// of a different, non-nil handle is the stale-producer guard: the chunk
// is dropped and the stale handle terminated, so a superseded build can
// never interleave output into the new build's display. A nil handle
// bypasses the guard; it is used for controller-generated text such as
// the cancellation marker.
//
// One mutex guards everything; it is held only for the append/pop
// critical sections, never across display work.
type Queue struct {
	mu     sync.Mutex
	owner  *process.Handle
	chunks []string
	wake   chan struct{}
}

// NewQueue creates an empty queue with no owner.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// SetOwner records the handle whose output the queue accepts.
func (q *Queue) SetOwner(h *process.Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.owner = h
}

// Owner returns the current owner.
func (q *Queue) Owner() *process.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.owner
}

// Clear drops all queued chunks and the owner. Called when a new build
// starts so nothing from the previous one leaks through.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = nil
	q.owner = nil
}

// Append enqueues text on behalf of h. If h is non-nil and not the
// current owner the text is discarded and h is terminated. Text is
// coalesced into the last chunk while it has spare capacity under the
// block-size cap. The consumer is woken when the queue was empty.
func (q *Queue) Append(h *process.Handle, text string) {
	q.mu.Lock()

	if h != nil && h != q.owner {
		q.mu.Unlock()
		// A second invocation superseded this producer; stop it
		// instead of intermingling its output. Append runs inside the
		// handle's own Data delivery, where a synchronous Terminate
		// would deadlock on the in-flight callback.
		go h.Terminate()
		return
	}

	wasEmpty := len(q.chunks) == 0
	if wasEmpty {
		q.chunks = append(q.chunks, "")
	}

	last := q.chunks[len(q.chunks)-1]
	if len(last)+len(text) < process.BlockSize {
		q.chunks[len(q.chunks)-1] = last + text
	} else {
		q.chunks = append(q.chunks, text)
	}
	q.mu.Unlock()

	if wasEmpty {
		q.wakeConsumer()
	}
}

// Pop removes and returns the front chunk. more reports whether chunks
// remain, so the consumer can reschedule itself.
func (q *Queue) Pop() (text string, ok bool, more bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		// A new build may have cleared the queue between the wakeup
		// and this pop.
		return "", false, false
	}

	text = q.chunks[0]
	q.chunks = q.chunks[1:]
	return text, true, len(q.chunks) > 0
}

// Wake returns the channel the consumer blocks on.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// wakeConsumer nudges the consumer without blocking; a pending wakeup
// already covers this chunk.
func (q *Queue) wakeConsumer() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Reschedule requests another drain tick. Exported for the consumer,
// which calls it after popping a chunk while more remain.
func (q *Queue) Reschedule() {
	q.wakeConsumer()
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

package pipeserver

import (
	"sync"

	"github.com/winmux/winmux/internal/protocol"
)

// outbox is a connection's outbound event queue: multiple producers —
// the dispatcher's own replies and however many sessions this
// connection is attached to — enqueue from their own goroutines, and
// a single writer goroutine dequeues in order. enqueue never blocks no
// matter how deep the queue grows, so a connection whose pipe write is
// stuck only ever stalls its own queue, never the session read loop
// that produced the chunk or any other connection's delivery.
//
// Grounded on the same mutex-plus-sync.Cond wait/signal shape
// bureau-foundation-bureau/observe/control.go uses for its
// notification queue, generalized from a single pending flag to a
// growable slice.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []protocol.Event
	closed bool

	closeOnce sync.Once
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// enqueue appends ev to the queue and wakes the writer goroutine. A
// send after close is silently dropped — the connection is already
// tearing down and nothing will ever drain it again.
func (o *outbox) enqueue(ev protocol.Event) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, ev)
	o.mu.Unlock()
	o.cond.Signal()
}

// dequeue blocks until an event is available or the outbox has been
// closed and fully drained, in which case ok is false.
func (o *outbox) dequeue() (ev protocol.Event, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	if len(o.queue) == 0 {
		return nil, false
	}
	ev, o.queue = o.queue[0], o.queue[1:]
	return ev, true
}

// close marks the outbox done: queued events already waiting are still
// delivered to the next dequeue calls, but no further enqueue succeeds
// and dequeue returns ok=false once the queue empties. Safe to call
// more than once.
func (o *outbox) close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		o.cond.Broadcast()
	})
}

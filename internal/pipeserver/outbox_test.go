package pipeserver

import (
	"testing"
	"time"

	"github.com/winmux/winmux/internal/protocol"
)

func TestOutbox_DequeueReturnsInFIFOOrder(t *testing.T) {
	o := newOutbox()
	o.enqueue(protocol.NewPongEvent(time.Time{}))
	o.enqueue(protocol.NewAckEvent("first"))
	o.enqueue(protocol.NewAckEvent("second"))

	if _, ok := o.dequeue(); !ok {
		t.Fatal("expected the first dequeue to succeed")
	}
	ev, ok := o.dequeue()
	if !ok || ev.(protocol.AckEvent).ReqID != "first" {
		t.Fatalf("expected AckEvent{first}, got %+v, ok=%v", ev, ok)
	}
	ev, ok = o.dequeue()
	if !ok || ev.(protocol.AckEvent).ReqID != "second" {
		t.Fatalf("expected AckEvent{second}, got %+v, ok=%v", ev, ok)
	}
}

// TestOutbox_EnqueueNeverBlocks is the property the writer goroutine
// design rests on: a producer (a session's read loop, fanning a chunk
// out to every attached connection) must never stall no matter how
// deep this connection's queue has grown because nothing is draining
// it — that is the entire reason this exists instead of a bounded
// channel or a direct write under a mutex.
func TestOutbox_EnqueueNeverBlocks(t *testing.T) {
	o := newOutbox()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			o.enqueue(protocol.NewOutputEvent("sess", []byte("x")))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked with no consumer draining the queue")
	}
}

func TestOutbox_CloseDrainsThenStopsDequeue(t *testing.T) {
	o := newOutbox()
	o.enqueue(protocol.NewPongEvent(time.Time{}))
	o.close()

	if _, ok := o.dequeue(); !ok {
		t.Fatal("expected the event queued before close to still be delivered")
	}
	if _, ok := o.dequeue(); ok {
		t.Fatal("expected dequeue to report done once the queue is empty and closed")
	}
}

func TestOutbox_EnqueueAfterCloseIsDropped(t *testing.T) {
	o := newOutbox()
	o.close()
	o.enqueue(protocol.NewPongEvent(time.Time{}))

	if _, ok := o.dequeue(); ok {
		t.Fatal("expected enqueue after close to be silently dropped")
	}
}

package pipeserver

import (
	"log/slog"
	"net"
	"sync"

	"github.com/winmux/winmux/internal/protocol"
	"github.com/winmux/winmux/internal/session"
)

// attachment pairs a session with the listener handle this connection
// registered on it, so close/detach can unregister without a second
// registry lookup.
type attachment struct {
	sess   *session.Session
	handle *session.ListenerHandle
}

// clientConnection is one accepted pipe connection. It owns an outbound
// queue and a single writer goroutine draining it — the dispatcher's
// own replies and a session's output fan-out both enqueue, often from
// different goroutines, but only writeLoop ever touches the pipe, so
// frames never interleave.
type clientConnection struct {
	conn net.Conn
	log  *slog.Logger

	out *outbox

	attachMu sync.Mutex
	attached map[string]attachment // sessionID -> this connection's listener on it
}

func newClientConnection(conn net.Conn, log *slog.Logger) *clientConnection {
	c := &clientConnection{
		conn:     conn,
		log:      log,
		out:      newOutbox(),
		attached: make(map[string]attachment),
	}
	go c.writeLoop()
	return c
}

// send enqueues ev for this connection's writer goroutine. It never
// blocks on the pipe, regardless of how far behind this client's reader
// is — that is the entire point of going through the outbox rather
// than writing here directly: a caller on a session's hot read loop
// must never stall behind one slow client's pipe write.
func (c *clientConnection) send(ev protocol.Event) {
	c.out.enqueue(ev)
}

// writeLoop is this connection's sole writer: it drains the outbound
// queue in order and frames each event to the pipe, one at a time. A
// write error closes the connection, which unblocks handle's blocked
// read and drives disposal from there.
func (c *clientConnection) writeLoop() {
	for {
		ev, ok := c.out.dequeue()
		if !ok {
			return
		}
		if err := protocol.WriteMessage(c.conn, ev); err != nil {
			c.log.Warn("write to client failed", "error", err)
			_ = c.conn.Close()
			return
		}
	}
}

// outputSink adapts a session's Sink capability to this connection's
// framed Output events, tagged with the session id the spec's wire
// format requires on every Output.
type outputSink struct {
	conn      *clientConnection
	sessionID string
}

func (s outputSink) Accept(chunk []byte) {
	s.conn.send(protocol.NewOutputEvent(s.sessionID, chunk))
}

// SessionExited implements session.ExitNotifier: a session's exit
// reaches every connection attached to it as an Exit event, same as a
// live output chunk reaches them as an Output event.
func (s outputSink) SessionExited(code int) {
	s.conn.send(protocol.NewExitEvent(s.sessionID, code))
}

// attach registers this connection's interest in sess's output. A
// second Attach to the same session from the same connection replaces
// the prior listener rather than stacking a duplicate one.
func (c *clientConnection) attach(sess *session.Session) {
	h := sess.AddListener(outputSink{conn: c, sessionID: sess.ID})

	c.attachMu.Lock()
	prev, hadPrev := c.attached[sess.ID]
	c.attached[sess.ID] = attachment{sess: sess, handle: h}
	c.attachMu.Unlock()

	if hadPrev {
		prev.sess.RemoveListener(prev.handle)
	}
}

// detach un-registers this connection's listener for sessionID, if it
// has one. A Detach for a session never attached is a no-op.
func (c *clientConnection) detach(sessionID string) {
	c.attachMu.Lock()
	a, ok := c.attached[sessionID]
	delete(c.attached, sessionID)
	c.attachMu.Unlock()

	if ok {
		a.sess.RemoveListener(a.handle)
	}
}

// close un-registers every listener this connection ever attached,
// marks the outbox closed so further enqueues are dropped, and closes
// the pipe right away; events still queued at that point are not
// guaranteed to reach the client. Safe to call more than once.
func (c *clientConnection) close() {
	c.attachMu.Lock()
	attached := c.attached
	c.attached = make(map[string]attachment)
	c.attachMu.Unlock()

	for _, a := range attached {
		a.sess.RemoveListener(a.handle)
	}
	c.out.close()
	_ = c.conn.Close()
}

// Package pipeserver implements the daemon side of the local transport:
// accept connections, frame-decode requests, dispatch them against the
// registry, and frame-encode replies and output events back out. The
// connection-handling logic here depends only on net.Conn/net.Listener,
// never on the platform-specific named-pipe listener in
// listen_windows.go — see server_test.go, which drives it over
// net.Pipe.
package pipeserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/winmux/winmux/internal/protocol"
	"github.com/winmux/winmux/internal/registry"
	"github.com/winmux/winmux/internal/session"
)

// Server dispatches framed requests arriving on accepted connections
// against a Registry. One Server serves one listener; the daemon's
// process lifetime owns exactly one.
type Server struct {
	reg *registry.Registry
	log *slog.Logger
}

// New constructs a Server bound to reg. log defaults to slog.Default()
// when nil.
func New(reg *registry.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{reg: reg, log: log}
}

// Serve accepts connections from ln, handling each on its own
// goroutine, until ctx is canceled or Accept fails for another reason.
// It blocks until every in-flight connection handler has returned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pipeserver: accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(conn)
		}()
	}
}

// handle owns one connection end to end: read a frame, decode it,
// dispatch it, repeat, until the client disconnects or a framing error
// makes the stream unrecoverable.
func (s *Server) handle(conn net.Conn) {
	c := newClientConnection(conn, s.log)
	defer c.close()

	for {
		raw, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn("connection read error", "error", err)
			}
			return
		}

		req, err := protocol.DecodeRequest(raw)
		if err != nil {
			var unimpl *protocol.UnimplementedVariantError
			if errors.As(err, &unimpl) {
				c.send(protocol.NewErrorEvent("", protocol.ErrorUnimplemented, unimpl.Error()))
				continue
			}
			// An undecodable payload is a framing/protocol error, not a
			// recognised-but-unimplemented request — it means this
			// stream can no longer be trusted to contain well-formed
			// frames, so the connection is disposed rather than kept
			// alive past it.
			s.log.Warn("malformed request, closing connection", "error", err)
			return
		}

		s.dispatch(c, req)
	}
}

// dispatch is the exhaustive switch the closed Request set calls for —
// every variant protocol.DecodeRequest can produce has a case here.
func (s *Server) dispatch(c *clientConnection, req protocol.Request) {
	switch r := req.(type) {
	case protocol.PingRequest:
		c.send(protocol.NewPongEvent(time.Now()))

	case protocol.ListRequest:
		c.send(protocol.NewSessionsEvent(toWireSummaries(s.reg.List())))

	case protocol.CreateSessionRequest:
		sess, err := s.reg.Create(registry.CreateParams{
			Name:  r.Name,
			Shell: r.Shell,
			Cwd:   r.Cwd,
			Env:   r.Env,
			Cols:  r.Cols,
			Rows:  r.Rows,
		})
		if err != nil {
			c.send(protocol.NewErrorEvent("", protocol.ErrorInternal, err.Error()))
			return
		}
		c.send(protocol.NewCreatedEvent(sess.ID))

	case protocol.AttachRequest:
		sess, ok := s.reg.Get(r.IDOrName)
		if !ok {
			c.send(notFoundEvent(r.IDOrName))
			return
		}
		c.attach(sess)
		c.send(protocol.NewAttachedEvent(sess.ID))

	case protocol.InputRequest:
		sess, ok := s.reg.Get(r.SessionID)
		if !ok {
			c.send(notFoundEvent(r.SessionID))
			return
		}
		if err := sess.WriteInput(r.Data); err != nil {
			c.send(protocol.NewErrorEvent("", protocol.ErrorInternal, err.Error()))
		}

	case protocol.ResizeRequest:
		sess, ok := s.reg.Get(r.SessionID)
		if !ok {
			c.send(notFoundEvent(r.SessionID))
			return
		}
		if err := sess.Resize(r.Cols, r.Rows); err != nil {
			c.send(protocol.NewErrorEvent("", protocol.ErrorInternal, err.Error()))
		}

	case protocol.KillRequest:
		sess, ok := s.reg.Get(r.SessionID)
		if !ok {
			c.send(notFoundEvent(r.SessionID))
			return
		}
		// Ack confirms the signal was sent, not that the child has
		// exited yet — the exit itself arrives later as an Output
		// listener's Exit event, once the waiter observes it.
		sess.Kill()
		c.send(protocol.NewAckEvent(""))

	case protocol.DetachRequest:
		if _, ok := s.reg.Get(r.SessionID); !ok {
			c.send(notFoundEvent(r.SessionID))
			return
		}
		c.detach(r.SessionID)
		c.send(protocol.NewAckEvent(""))

	default:
		c.send(protocol.NewErrorEvent("", protocol.ErrorUnimplemented, fmt.Sprintf("unhandled request %T", r)))
	}
}

func notFoundEvent(idOrName string) protocol.ErrorEvent {
	return protocol.NewErrorEvent("", protocol.ErrorNotFound, fmt.Sprintf("no such session: %q", idOrName))
}

func toWireSummaries(list []session.Summary) []protocol.SessionSummary {
	out := make([]protocol.SessionSummary, 0, len(list))
	for _, sm := range list {
		out = append(out, protocol.SessionSummary{
			ID:           sm.ID,
			Name:         sm.Name,
			State:        string(sm.State),
			Cols:         sm.Cols,
			Rows:         sm.Rows,
			Shell:        sm.Shell,
			Cwd:          sm.Cwd,
			Pid:          sm.Pid,
			CreatedAt:    sm.CreatedAt,
			LastActiveAt: sm.LastActiveAt,
		})
	}
	return out
}

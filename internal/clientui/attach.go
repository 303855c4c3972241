// Package clientui implements the interactive attach-mode terminal:
// stdin goes into raw mode and streams to the session as Input
// requests, Output/Exit events stream back to stdout, and one chord
// (Ctrl-\) detaches locally without killing the session.
package clientui

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/winmux/winmux/internal/protocol"
	"github.com/winmux/winmux/internal/wmuxclient"
)

// ANSI codes in the dim/reset style used for status lines elsewhere in
// the pack's terminal tooling.
const (
	dim   = "\033[2m"
	reset = "\033[0m"
)

// detachChord is Ctrl-\, the byte attach mode watches for to end the
// local session without killing the remote one.
const detachChord = 0x1c

// Attach puts stdin into raw mode, attaches to idOrName, and pumps
// output to stdout and stdin to the session until it exits, the
// connection drops, or the user detaches.
func Attach(c *wmuxclient.Client, idOrName string) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("clientui: enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	if err := c.Send(protocol.NewAttachRequest(idOrName)); err != nil {
		return fmt.Errorf("clientui: send attach: %w", err)
	}

	events := make(chan protocol.Event)
	recvErrs := make(chan error, 1)
	go pumpEvents(c, events, recvErrs)

	// The server registers the listener — which synchronously replays
	// any warm-attach tail as Output events — before it sends Attached,
	// so on a session with buffered output the wire order is
	// Output(replay)... then Attached. Buffer replay chunks here until
	// Attached itself arrives, then flush them in order once sessionID
	// is known.
	var sessionID string
	var buffered []protocol.OutputEvent
waitForAttached:
	for {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case protocol.AttachedEvent:
				sessionID = e.SessionID
				break waitForAttached
			case protocol.OutputEvent:
				buffered = append(buffered, e)
			default:
				return unexpectedAttachReply(ev)
			}
		case err := <-recvErrs:
			return fmt.Errorf("clientui: recv attach reply: %w", err)
		}
	}
	for _, e := range buffered {
		if e.SessionID == sessionID {
			os.Stdout.Write(e.Data)
		}
	}

	fmt.Fprintf(os.Stderr, "%s[attached to %s — Ctrl-\\ detaches]%s\r\n", dim, sessionID, reset)

	quit := make(chan struct{})
	inputErrs := make(chan error, 1)
	go readInput(c, sessionID, quit, inputErrs)

	for {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case protocol.OutputEvent:
				if e.SessionID == sessionID {
					os.Stdout.Write(e.Data)
				}
			case protocol.ExitEvent:
				if e.SessionID == sessionID {
					fmt.Fprintf(os.Stderr, "\r\n%s[session exited, code %d]%s\r\n", dim, e.Code, reset)
					return nil
				}
			case protocol.ErrorEvent:
				fmt.Fprintf(os.Stderr, "\r\n%s[error: %s]%s\r\n", dim, e.Message, reset)
			}
		case err := <-recvErrs:
			return fmt.Errorf("clientui: connection closed: %w", err)
		case err := <-inputErrs:
			return err
		case <-quit:
			fmt.Fprintf(os.Stderr, "\r\n%s[detached]%s\r\n", dim, reset)
			return nil
		}
	}
}

func unexpectedAttachReply(ev protocol.Event) error {
	if e, ok := ev.(protocol.ErrorEvent); ok {
		return fmt.Errorf("clientui: attach: %s", e.Message)
	}
	return fmt.Errorf("clientui: unexpected reply to attach: %T", ev)
}

func pumpEvents(c *wmuxclient.Client, events chan<- protocol.Event, errs chan<- error) {
	for {
		ev, err := c.Recv()
		if err != nil {
			errs <- err
			return
		}
		events <- ev
	}
}

// readInput streams stdin to the daemon as Input requests. On the
// detach chord, it flushes any bytes preceding the chord, sends
// Detach, and closes quit — the chord itself is never forwarded.
func readInput(c *wmuxclient.Client, sessionID string, quit chan<- struct{}, errs chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if idx := bytes.IndexByte(chunk, detachChord); idx >= 0 {
				if idx > 0 {
					_ = c.Send(protocol.NewInputRequest(sessionID, append([]byte(nil), chunk[:idx]...)))
				}
				_ = c.Send(protocol.NewDetachRequest(sessionID))
				close(quit)
				return
			}
			if sendErr := c.Send(protocol.NewInputRequest(sessionID, append([]byte(nil), chunk...))); sendErr != nil {
				errs <- sendErr
				return
			}
		}
		if err != nil {
			errs <- err
			return
		}
	}
}

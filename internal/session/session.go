// Package session implements the per-session state machine at the core
// of the daemon: one PTY, one child process, an output ring buffer, and
// a listener set that fans live output out to zero or more subscribers
// with a replay-on-attach guarantee.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/winmux/winmux/internal/ptyadapter"
)

// State is a Session's lifecycle state. There is no transition back from
// Exited.
type State string

const (
	StateRunning State = "Running"
	StateExited  State = "Exited"
)

// DefaultCols and DefaultRows are used when a CreateSession request
// omits cols/rows (spec §4.4).
const (
	DefaultCols = 120
	DefaultRows = 30
)

// ReadChunkSize is the scratch buffer size for the PTY read loop.
const ReadChunkSize = 8 * 1024

// Opener opens a PTY and spawns spec's command attached to it. In
// production this is ptyadapter.Open; tests inject a fake so the whole
// state machine below runs without a real ConPTY.
type Opener func(ptyadapter.Spec) (*ptyadapter.Handle, error)

// Params are the inputs to Create, after the registry has resolved
// name/shell/cwd defaults against configuration. Cols/Rows default to
// DefaultCols/DefaultRows here if zero.
type Params struct {
	ID    string
	Name  string
	Shell string
	Args  []string
	Cwd   string
	Env   map[string]string
	Cols  int
	Rows  int
}

// Summary is a flat, externally-visible snapshot of a Session (spec §3).
type Summary struct {
	ID           string
	Name         string
	State        State
	Cols         int
	Rows         int
	Shell        string
	Cwd          string
	Pid          int
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Session binds one child process to one pseudoconsole, fans its output
// out to a listener set, and keeps a ring-buffered tail for warm attach.
type Session struct {
	ID    string
	Name  string
	Shell string
	Cwd   string

	log *slog.Logger

	mu           sync.Mutex // guards Cols, Rows, state, pid, timestamps below
	cols, rows   int
	state        State
	pid          int
	createdAt    time.Time
	lastActiveAt time.Time
	exitCode     int

	pty     ptyadapter.PTY
	process ptyadapter.ProcessHandle
	job     jobTerminator

	inputMu sync.Mutex

	ring *ringBuffer

	listenersMu sync.Mutex
	listeners   map[*ListenerHandle]struct{}

	// cancel is fired by readLoop when the PTY's output handle fails
	// with something other than EOF, so the session transitions to
	// Exited even if the child process itself never does — a dead
	// output pipe with a still-running child is not a state waiter's
	// process.Wait() alone would ever resolve.
	cancel context.CancelFunc

	onExit func(s *Session, code int)
}

// jobTerminator is the subset of *winsec.JobObject a Session needs,
// kept as an interface so a fake can stand in for process-tree kill in
// tests that never touch a real job object.
type jobTerminator interface {
	TerminateAll() error
	Close() error
}

// Create validates/defaults cols and rows, opens a PTY with the given
// Opener, spawns p's command attached to it, and starts the session's
// read loop and exit waiter. onExit, if non-nil, is invoked exactly once
// when the waiter observes the child's termination, after state has
// already transitioned to Exited.
func Create(open Opener, p Params, log *slog.Logger, onExit func(*Session, int)) (*Session, error) {
	if p.Cols < 1 {
		p.Cols = DefaultCols
	}
	if p.Rows < 1 {
		p.Rows = DefaultRows
	}
	if log == nil {
		log = slog.Default()
	}

	handle, err := open(ptyadapter.Spec{
		Shell: p.Shell,
		Args:  p.Args,
		Cwd:   p.Cwd,
		Env:   p.Env,
		Cols:  p.Cols,
		Rows:  p.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("session: open pty: %w", err)
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:           p.ID,
		Name:         p.Name,
		Shell:        p.Shell,
		Cwd:          p.Cwd,
		log:          log.With("session", p.ID, "name", p.Name),
		cols:         p.Cols,
		rows:         p.Rows,
		state:        StateRunning,
		pid:          handle.Pid,
		createdAt:    now,
		lastActiveAt: now,
		pty:          handle.PTY,
		process:      handle.Process,
		ring:         newRingBuffer(DefaultRingCapacity),
		listeners:    make(map[*ListenerHandle]struct{}),
		cancel:       cancel,
		onExit:       onExit,
	}
	// handle.Job is a concrete *winsec.JobObject; compare before boxing
	// it into the jobTerminator interface so a nil handle (as tests that
	// don't exercise real process-tree kill may pass) stays a true nil
	// interface rather than a non-nil interface wrapping a nil pointer.
	if handle.Job != nil {
		s.job = handle.Job
	}

	go s.readLoop()
	go s.waiter(ctx)

	return s, nil
}

// Summary snapshots the externally visible fields.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:           s.ID,
		Name:         s.Name,
		State:        s.state,
		Cols:         s.cols,
		Rows:         s.rows,
		Shell:        s.Shell,
		Cwd:          s.Cwd,
		Pid:          s.pid,
		CreatedAt:    s.createdAt,
		LastActiveAt: s.lastActiveAt,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WriteInput writes data to the PTY's input handle under the per-session
// input mutex and advances last-active-at. It is a no-op once the
// session has exited.
func (s *Session) WriteInput(data []byte) error {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	if s.State() == StateExited {
		return nil
	}

	if _, err := s.pty.Write(data); err != nil {
		return fmt.Errorf("session: write input: %w", err)
	}
	s.touch()
	return nil
}

// Resize stores the new dimensions and forwards them to the PTY. No
// listener is notified — resize is not output.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()

	if err := s.pty.Resize(cols, rows); err != nil {
		return fmt.Errorf("session: resize: %w", err)
	}
	return nil
}

// AddListener registers sink and, if the ring buffer is non-empty,
// replays the current tail to it before returning. Insert, tail read,
// and replay all happen under listenersMu — the same lock readLoop
// holds across appending a chunk to the ring and delivering it to every
// listener present at that instant — so the two can never interleave:
// either this call fully completes before the next chunk is appended
// and fanned out, or that chunk is appended and delivered to the
// listeners that existed before this call, and this call's replay then
// sees it already folded into the tail. Either way sink never observes
// a live chunk before its replay. Accept must not block on I/O for this
// to be safe to call under the lock; sinks built on an outbound queue
// satisfy that by construction.
func (s *Session) AddListener(sink Sink) *ListenerHandle {
	h := &ListenerHandle{sink: sink}

	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.listeners[h] = struct{}{}
	if tail := s.ring.tail(); len(tail) > 0 {
		sink.Accept(tail)
	}
	return h
}

// RemoveListener removes sink by identity. Removing a handle twice, or
// one never added, is a no-op.
func (s *Session) RemoveListener(h *ListenerHandle) {
	if h == nil {
		return
	}
	s.listenersMu.Lock()
	delete(s.listeners, h)
	s.listenersMu.Unlock()
}

// Kill best-effort terminates the process tree rooted at the child.
// Errors are swallowed per spec §4.4; the actual state transition to
// Exited happens through the waiter once the child has actually died.
func (s *Session) Kill() {
	if s.job != nil {
		_ = s.job.TerminateAll()
		return
	}
	_ = s.process.Kill()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActiveAt = time.Now()
	s.mu.Unlock()
}

// readLoop repeatedly drains the PTY's output handle, appends each
// non-empty chunk to the ring buffer, and fans it out to every
// currently registered listener. EOF ends the loop quietly — that is
// the ordinary way a session ends, via the waiter observing the child
// exit. Any other read error is fatal to the pipe but not necessarily
// to the child, so it fires s.cancel() to force waiter to transition
// the session to Exited (and tear the child down) instead of leaving it
// Running against a pipe that will never produce output again.
func (s *Session) readLoop() {
	buf := make([]byte, ReadChunkSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			s.touch()

			s.listenersMu.Lock()
			s.ring.write(chunk)
			for h := range s.listeners {
				deliver(s.log, h.sink, chunk)
			}
			s.listenersMu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn("pty read loop ended with error", "error", err)
				s.cancel()
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

// deliver invokes sink.Accept, recovering from a panicking listener so
// one bad subscriber cannot take down the read loop or its siblings.
func deliver(log *slog.Logger, sink Sink, chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("listener panicked", "panic", r)
		}
	}()
	sink.Accept(chunk)
}

// processExit carries process.Wait's result across the goroutine below
// so waiter can select on it alongside ctx.Done().
type processExit struct {
	state ptyadapter.ProcessState
	err   error
}

// waiter blocks until the child process exits or ctx is canceled —
// whichever happens first — then transitions the session to Exited and
// releases its resources exactly once. ctx is canceled by readLoop when
// the PTY's output handle fails with something other than EOF; in that
// case the child may still be running, so waiter forces it down before
// proceeding, the same as an explicit Kill would.
func (s *Session) waiter(ctx context.Context) {
	waitDone := make(chan processExit, 1)
	go func() {
		state, err := s.process.Wait()
		waitDone <- processExit{state, err}
	}()

	var exitCode int
	select {
	case res := <-waitDone:
		if res.state != nil {
			exitCode = res.state.ExitCode()
		} else if res.err != nil {
			exitCode = -1
		}
	case <-ctx.Done():
		exitCode = -1
		if s.job != nil {
			_ = s.job.TerminateAll()
		} else {
			_ = s.process.Kill()
		}
	}

	s.mu.Lock()
	alreadyExited := s.state == StateExited
	s.state = StateExited
	s.exitCode = exitCode
	s.mu.Unlock()

	_ = s.pty.Close()
	if s.job != nil {
		_ = s.job.Close()
	}

	if alreadyExited {
		return
	}

	s.listenersMu.Lock()
	sinks := make([]Sink, 0, len(s.listeners))
	for h := range s.listeners {
		sinks = append(sinks, h.sink)
	}
	s.listenersMu.Unlock()
	for _, sink := range sinks {
		if notifier, ok := sink.(ExitNotifier); ok {
			deliverExit(s.log, notifier, exitCode)
		}
	}

	if s.onExit != nil {
		s.onExit(s, exitCode)
	}
}

// deliverExit invokes notifier.SessionExited, recovering from a panic
// the same way deliver does for Accept.
func deliverExit(log *slog.Logger, notifier ExitNotifier, code int) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("listener panicked", "panic", r)
		}
	}()
	notifier.SessionExited(code)
}

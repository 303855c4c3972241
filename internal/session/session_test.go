package session

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/winmux/winmux/internal/ptyadapter"
)

// fakePTY is an in-memory stand-in for a real ConPTY: Read drains an
// io.Pipe a test feeds with feed(), Write records what the session
// wrote so tests can assert on input.
type fakePTY struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	mu     sync.Mutex
	inputs [][]byte
	closed bool
	cols   int
	rows   int
}

func newFakePTY() *fakePTY {
	r, w := io.Pipe()
	return &fakePTY{outR: r, outW: w}
}

func (f *fakePTY) feed(data []byte) { f.outW.Write(data) }

func (f *fakePTY) Read(p []byte) (int, error) { return f.outR.Read(p) }

func (f *fakePTY) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, append([]byte(nil), p...))
	f.mu.Unlock()
	return len(p), nil
}

func (f *fakePTY) Resize(cols, rows int) error {
	f.mu.Lock()
	f.cols, f.rows = cols, rows
	f.mu.Unlock()
	return nil
}

func (f *fakePTY) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.outW.Close()
}

func (f *fakePTY) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func (f *fakePTY) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// failRead makes any Read blocked on, or issued after, this call
// return err instead of data — simulating a fatal output-pipe failure
// distinct from the ordinary EOF a real session shutdown produces.
func (f *fakePTY) failRead(err error) {
	f.outW.CloseWithError(err)
}

// fakeProcess is a ProcessHandle whose Wait() unblocks when the test
// calls exit().
type fakeProcess struct {
	exitCh chan int
	killed chan struct{}
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exitCh: make(chan int, 1), killed: make(chan struct{}, 1)}
}

func (p *fakeProcess) exit(code int) { p.exitCh <- code }

func (p *fakeProcess) Kill() error {
	select {
	case p.killed <- struct{}{}:
	default:
	}
	return nil
}

func (p *fakeProcess) Wait() (ptyadapter.ProcessState, error) {
	code := <-p.exitCh
	return fakeExitState{code: code}, nil
}

type fakeExitState struct{ code int }

func (f fakeExitState) ExitCode() int { return f.code }

type collectingSink struct {
	ch chan []byte
}

func newCollectingSink() *collectingSink {
	return &collectingSink{ch: make(chan []byte, 16)}
}

func (c *collectingSink) Accept(chunk []byte) {
	c.ch <- append([]byte(nil), chunk...)
}

func (c *collectingSink) recv(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-c.ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a chunk")
		return nil
	}
}

func newTestSession(t *testing.T, pty *fakePTY, proc *fakeProcess) *Session {
	t.Helper()
	open := func(ptyadapter.Spec) (*ptyadapter.Handle, error) {
		return &ptyadapter.Handle{PTY: pty, Process: proc, Pid: 4242}, nil
	}
	s, err := Create(open, Params{ID: "deadbeefdeadbeefdeadbeefdeadbeef", Name: "t", Shell: "sh", Cols: 80, Rows: 24}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() {
		select {
		case proc.exitCh <- 0:
		default:
		}
	})
	return s
}

func TestSession_Create_DefaultsColsRows(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	open := func(ptyadapter.Spec) (*ptyadapter.Handle, error) {
		return &ptyadapter.Handle{PTY: pty, Process: proc, Pid: 1}, nil
	}
	s, err := Create(open, Params{ID: "x", Name: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer proc.exit(0)

	sum := s.Summary()
	if sum.Cols != DefaultCols || sum.Rows != DefaultRows {
		t.Fatalf("expected defaults %dx%d, got %dx%d", DefaultCols, DefaultRows, sum.Cols, sum.Rows)
	}
	if sum.State != StateRunning {
		t.Fatalf("expected Running, got %s", sum.State)
	}
}

func TestSession_WarmAttachReplayAtomicity(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	s := newTestSession(t, pty, proc)

	first := newCollectingSink()
	s.AddListener(first)

	pty.feed([]byte("hello"))
	if got := string(first.recv(t)); got != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}

	// A listener added after the ring buffer has content must receive
	// exactly that tail as its first chunk, before any later live chunk.
	second := newCollectingSink()
	s.AddListener(second)
	if got := string(second.recv(t)); got != "hello" {
		t.Fatalf("expected warm-attach replay 'hello', got %q", got)
	}

	pty.feed([]byte("world"))
	if got := string(first.recv(t)); got != "world" {
		t.Fatalf("first listener: expected 'world', got %q", got)
	}
	if got := string(second.recv(t)); got != "world" {
		t.Fatalf("second listener: expected 'world', got %q", got)
	}
}

func TestSession_RemoveListenerStopsDelivery(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	s := newTestSession(t, pty, proc)

	sink := newCollectingSink()
	h := s.AddListener(sink)
	pty.feed([]byte("one"))
	sink.recv(t)

	s.RemoveListener(h)
	pty.feed([]byte("two"))

	select {
	case b := <-sink.ch:
		t.Fatalf("expected no further delivery after removal, got %q", b)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSession_ExitTransitionsStateAndClosesPTY(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	open := func(ptyadapter.Spec) (*ptyadapter.Handle, error) {
		return &ptyadapter.Handle{PTY: pty, Process: proc, Pid: 7}, nil
	}

	exitSeen := make(chan int, 1)
	s, err := Create(open, Params{ID: "y", Name: "t"}, nil, func(_ *Session, code int) {
		exitSeen <- code
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	proc.exit(3)

	select {
	case code := <-exitSeen:
		if code != 3 {
			t.Fatalf("expected exit code 3, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onExit was not called")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == StateExited && pty.isClosed() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected Exited state and closed pty, got state=%s closed=%v", s.State(), pty.isClosed())
}

func TestSession_WriteInputIgnoredAfterExit(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	s := newTestSession(t, pty, proc)

	proc.exit(0)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.State() != StateExited {
		time.Sleep(10 * time.Millisecond)
	}
	if s.State() != StateExited {
		t.Fatal("session did not transition to Exited")
	}

	before := pty.writeCount()
	if err := s.WriteInput([]byte("too late")); err != nil {
		t.Fatalf("WriteInput after exit should be a no-op, got error: %v", err)
	}
	if pty.writeCount() != before {
		t.Fatal("WriteInput wrote to the PTY after exit")
	}
}

func TestSession_ResizeDoesNotNotifyListeners(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	s := newTestSession(t, pty, proc)

	sink := newCollectingSink()
	s.AddListener(sink)

	if err := s.Resize(100, 40); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	select {
	case b := <-sink.ch:
		t.Fatalf("resize should not notify listeners, got %q", b)
	case <-time.After(200 * time.Millisecond):
	}

	sum := s.Summary()
	if sum.Cols != 100 || sum.Rows != 40 {
		t.Fatalf("expected 100x40, got %dx%d", sum.Cols, sum.Rows)
	}
}

func TestSession_KillFallsBackToProcessKillWithoutJobObject(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	s := newTestSession(t, pty, proc)

	s.Kill()

	select {
	case <-proc.killed:
	case <-time.After(time.Second):
		t.Fatal("expected Kill to fall back to process.Kill when no job object is present")
	}
}

// TestSession_FatalReadErrorForcesExitEvenIfProcessStillRunning covers
// the state machine's second transition trigger: a fatal (non-EOF)
// output-pipe failure must move the session to Exited and tear the
// child down, not leave it Running forever waiting on a process.Wait()
// that the dead pipe will never cause to return on its own.
func TestSession_FatalReadErrorForcesExitEvenIfProcessStillRunning(t *testing.T) {
	pty := newFakePTY()
	proc := newFakeProcess()
	s := newTestSession(t, pty, proc)

	pty.failRead(errors.New("simulated pipe failure"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.State() != StateExited {
		time.Sleep(10 * time.Millisecond)
	}
	if s.State() != StateExited {
		t.Fatal("session did not transition to Exited after a fatal read error")
	}

	select {
	case <-proc.killed:
	case <-time.After(time.Second):
		t.Fatal("expected waiter to kill the still-running process after a fatal read error")
	}
}

// Package ptyadapter is the platform glue between a Session and the
// operating system's pseudoconsole facility: spawning a child process
// attached to a PTY, exposing its input/output as byte streams, and
// resizing or closing the underlying handle.
//
// Open couples spec §4.3's open_pty and spawn into one call, matching
// github.com/creack/pty's own StartWithSize API (and the teacher's use
// of it in session.go's Create) — the library does not expose "create a
// pseudoconsole" and "attach a process to it" as separate steps, so
// there is nothing to gain from pretending otherwise here.
package ptyadapter

import (
	"io"

	"github.com/winmux/winmux/internal/winsec"
)

// PTY is the byte-stream and resize surface a Session needs from its
// pseudoconsole. Modeling it as an interface — rather than handing
// sessions a concrete *os.File plus a resize function — is what lets
// internal/session's tests run against a fake instead of a real ConPTY.
type PTY interface {
	io.Reader
	io.Writer
	Resize(cols, rows int) error
	Close() error
}

// Spec describes a pseudoconsole to open and the process to attach to
// it. Env must already be the fully-resolved child environment (daemon
// environment, overlaid with any per-session overrides, overlaid again
// with WMUX/WMUX_SESSION) — Open performs no merging of its own.
type Spec struct {
	Shell string
	Args  []string
	Cwd   string
	Env   map[string]string
	Cols  int
	Rows  int
}

// Handle is everything a freshly opened PTY hands back to its Session.
type Handle struct {
	PTY     PTY
	Process ProcessHandle
	Pid     int
	Job     *winsec.JobObject
}

// ProcessHandle is the subset of *os.Process a Session needs, kept as
// an interface so fakes can stand in for it in tests.
type ProcessHandle interface {
	Kill() error
	Wait() (ProcessState, error)
}

// ProcessState is the subset of *os.ProcessState a Session needs.
type ProcessState interface {
	ExitCode() int
}

//go:build windows

package ptyadapter

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"

	"github.com/winmux/winmux/internal/winsec"
)

// conpty adapts github.com/creack/pty's *os.File handle to the PTY
// interface.
type conpty struct {
	f *os.File
}

func (c *conpty) Read(p []byte) (int, error)  { return c.f.Read(p) }
func (c *conpty) Write(p []byte) (int, error) { return c.f.Write(p) }
func (c *conpty) Close() error                { return c.f.Close() }

func (c *conpty) Resize(cols, rows int) error {
	return pty.Setsize(c.f, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// osProcess adapts *os.Process to the ProcessHandle interface.
type osProcess struct {
	p *os.Process
}

func (o osProcess) Kill() error                { return o.p.Kill() }
func (o osProcess) Wait() (ProcessState, error) { return o.p.Wait() }

// Open creates a ConPTY of the requested size via creack/pty (which, on
// GOOS=windows, backs pty.StartWithSize with the real pseudoconsole API
// rather than a Unix pty pair), starts spec's command attached to it,
// and assigns the new process to a fresh job object so its entire
// descendant tree can later be killed with one call.
//
// creack/pty's Windows implementation already arranges handle
// inheritance so only the child receives the PTY-side pipe ends, and
// closes the daemon's copies of those ends once the child is started —
// Open does not need to repeat that bookkeeping.
func Open(spec Spec) (*Handle, error) {
	cmd := exec.Command(spec.Shell, spec.Args...)
	cmd.Dir = spec.Cwd
	cmd.Env = envSlice(spec.Env)

	ws := &pty.Winsize{Cols: uint16(spec.Cols), Rows: uint16(spec.Rows)}
	f, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, fmt.Errorf("ptyadapter: start: %w", err)
	}

	job, err := winsec.NewJobObject()
	if err != nil {
		_ = f.Close()
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("ptyadapter: job object: %w", err)
	}
	if err := job.Assign(cmd.Process.Pid); err != nil {
		_ = job.Close()
		_ = f.Close()
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("ptyadapter: assign job: %w", err)
	}

	return &Handle{
		PTY:     &conpty{f: f},
		Process: osProcess{p: cmd.Process},
		Pid:     cmd.Process.Pid,
		Job:     job,
	}, nil
}

func envSlice(overlay map[string]string) []string {
	out := make([]string, 0, len(overlay))
	for k, v := range overlay {
		out = append(out, k+"="+v)
	}
	return out
}

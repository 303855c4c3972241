//go:build windows

package daemonboot

import (
	"fmt"
	"os/exec"
	"os/user"
	"strings"
	"syscall"
	"time"

	winio "github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

// CREATE_NO_WINDOW and DETACHED_PROCESS are stable Win32 process
// creation flags; golang.org/x/sys/windows does not export either
// under those names, so they are given here directly.
const (
	createNoWindow  = 0x08000000
	detachedProcess = 0x00000008
)

func spawnDetached(exe string, args ...string) (int, error) {
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow | detachedProcess,
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// ProcessAlive reports whether pid is a live process, the way spec's
// daemon lifecycle needs to check without a POSIX kill(pid, 0).
func ProcessAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	const stillActive = 259
	return code == stillActive
}

// Terminate force-kills pid. There is no SIGTERM-equivalent graceful
// signal on Windows for an arbitrary process, so this is the daemon's
// entire stop path. TerminateProcess ends the daemon immediately, so
// its deferred shutdown cleanup does not run; Stop removes the PID file
// itself once the process is gone.
func Terminate(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("daemonboot: open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}

// pipeReady reports whether name can currently be dialed, the pipe
// analogue of the teacher's os.Stat(socketPath()) poll.
func pipeReady(name string) bool {
	timeout := 200 * time.Millisecond
	conn, err := winio.DialPipe(name, &timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func currentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("daemonboot: current user: %w", err)
	}
	name := u.Username
	if i := strings.IndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name), nil
}

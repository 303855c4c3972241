// Package daemonboot implements the re-exec-and-detach lifecycle the
// client CLI uses to bring the daemon up and down: Start spawns it as a
// hidden background process and waits for its pipe to come up, Stop
// signals it to exit and waits for the process to go away, Status
// reports whether it is currently running. The shape is the same
// start/stop/status split the daemon this module descends from used
// over its Unix socket and PID file, carried over to named pipes.
package daemonboot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/winmux/winmux/internal/config"
)

// DaemonSubcommand is the hidden CLI subcommand Start re-execs the
// current binary with.
const DaemonSubcommand = "__daemon"

func PidPath() string { return filepath.Join(config.Dir(), "winmux.pid") }
func LogPath() string { return filepath.Join(config.Dir(), "winmux.log") }

// PipeName returns the current user's named pipe path. The pipe is
// scoped per user, not per machine, to match §5's "only the owning
// user" access control — a shared name would let two users race to
// create it first.
func PipeName() (string, error) {
	name, err := currentUsername()
	if err != nil {
		return "", err
	}
	return `\\.\pipe\winmux-` + name, nil
}

// ReadPid returns the PID recorded in PidPath, or 0 if the file is
// missing or unparsable.
func ReadPid() int {
	data, err := os.ReadFile(PidPath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// WritePid records pid at PidPath, creating config.Dir() if needed.
func WritePid(pid int) error {
	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return fmt.Errorf("daemonboot: mkdir %s: %w", config.Dir(), err)
	}
	if err := os.WriteFile(PidPath(), []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("daemonboot: write pid file: %w", err)
	}
	return nil
}

// Start spawns the daemon as a hidden, detached child process running
// `<exe> __daemon`, then waits up to 5s for its pipe to come up.
func Start() error {
	if pid := ReadPid(); pid != 0 && ProcessAlive(pid) {
		return fmt.Errorf("daemonboot: daemon already running (pid %d)", pid)
	}
	os.Remove(PidPath())

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonboot: find executable: %w", err)
	}

	pid, err := spawnDetached(exe, DaemonSubcommand)
	if err != nil {
		return fmt.Errorf("daemonboot: spawn daemon: %w", err)
	}

	pipeName, err := PipeName()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pipeReady(pipeName) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemonboot: daemon (pid %d) did not open its pipe within 5s", pid)
}

// Stop terminates the running daemon and waits up to 5s for it to exit.
func Stop() error {
	pid := ReadPid()
	if pid == 0 || !ProcessAlive(pid) {
		os.Remove(PidPath())
		return fmt.Errorf("daemonboot: daemon is not running")
	}

	if err := Terminate(pid); err != nil {
		return fmt.Errorf("daemonboot: terminate pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			os.Remove(PidPath())
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemonboot: pid %d did not exit within 5s", pid)
}

// Status reports the recorded PID and whether it is currently alive.
func Status() (pid int, running bool) {
	pid = ReadPid()
	return pid, pid != 0 && ProcessAlive(pid)
}

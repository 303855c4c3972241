//go:build !windows

package daemonboot

import "github.com/winmux/winmux/internal/winsec"

func spawnDetached(exe string, args ...string) (int, error) {
	return 0, winsec.ErrUnsupportedPlatform
}

func ProcessAlive(pid int) bool { return false }

func Terminate(pid int) error { return winsec.ErrUnsupportedPlatform }

func pipeReady(name string) bool { return false }

func currentUsername() (string, error) {
	return "", winsec.ErrUnsupportedPlatform
}

//go:build !windows

package pipeserver

import (
	"net"

	"github.com/winmux/winmux/internal/winsec"
)

// Listen exists so cmd/winmux builds on every GOOS even though the
// daemon itself only ever runs on Windows; see listen_windows.go for
// the real implementation.
func Listen(name string) (net.Listener, error) {
	return nil, winsec.ErrUnsupportedPlatform
}

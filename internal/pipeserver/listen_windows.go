//go:build windows

package pipeserver

import (
	"fmt"
	"net"

	winio "github.com/Microsoft/go-winio"

	"github.com/winmux/winmux/internal/winsec"
)

// Listen opens name as a named pipe restricted to the current user via
// an SDDL security descriptor, for Serve to accept connections on. name
// is the pipe path daemonboot derives from the current user's name
// (e.g. `\\.\pipe\winmux-<user>`).
func Listen(name string) (net.Listener, error) {
	sddl, err := winsec.CurrentUserSDDL()
	if err != nil {
		return nil, fmt.Errorf("pipeserver: current user sddl: %w", err)
	}

	ln, err := winio.ListenPipe(name, &winio.PipeConfig{
		SecurityDescriptor: sddl,
		MessageMode:        false,
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   64 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeserver: listen pipe %s: %w", name, err)
	}
	return ln, nil
}

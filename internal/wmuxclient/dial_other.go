//go:build !windows

package wmuxclient

import (
	"net"

	"github.com/winmux/winmux/internal/winsec"
)

func dialPipe(name string) (net.Conn, error) {
	return nil, winsec.ErrUnsupportedPlatform
}

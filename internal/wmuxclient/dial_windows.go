//go:build windows

package wmuxclient

import (
	"net"
	"time"

	winio "github.com/Microsoft/go-winio"
)

func dialPipe(name string) (net.Conn, error) {
	timeout := 3 * time.Second
	return winio.DialPipe(name, &timeout)
}

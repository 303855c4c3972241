// Package wmuxclient is the CLI side of the wire protocol: dial the
// daemon's named pipe (starting it first if asked to), then frame
// requests out and events in over the resulting connection.
package wmuxclient

import (
	"fmt"
	"net"

	"github.com/winmux/winmux/internal/daemonboot"
	"github.com/winmux/winmux/internal/protocol"
)

// Client wraps one connection to the daemon.
type Client struct {
	conn net.Conn
}

// Dial connects to the daemon's pipe. If autostart is true and no
// daemon is currently reachable, it starts one via daemonboot.Start
// and retries once.
func Dial(autostart bool) (*Client, error) {
	pipeName, err := daemonboot.PipeName()
	if err != nil {
		return nil, err
	}

	conn, err := dialPipe(pipeName)
	if err == nil {
		return &Client{conn: conn}, nil
	}
	if !autostart {
		return nil, fmt.Errorf("wmuxclient: dial %s: %w", pipeName, err)
	}

	if err := daemonboot.Start(); err != nil {
		return nil, fmt.Errorf("wmuxclient: autostart daemon: %w", err)
	}
	conn, err = dialPipe(pipeName)
	if err != nil {
		return nil, fmt.Errorf("wmuxclient: dial %s after autostart: %w", pipeName, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Send frames req and writes it to the daemon.
func (c *Client) Send(req protocol.Request) error {
	return protocol.WriteMessage(c.conn, req)
}

// Recv blocks for the next framed event from the daemon.
func (c *Client) Recv() (protocol.Event, error) {
	raw, err := protocol.ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeEvent(raw)
}

// Conn exposes the underlying connection for callers that need to act
// on it directly, such as setting a read deadline before Recv.
func (c *Client) Conn() net.Conn { return c.conn }

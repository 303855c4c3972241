package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/winmux/winmux/internal/clientui"
	"github.com/winmux/winmux/internal/protocol"
	"github.com/winmux/winmux/internal/wmuxclient"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether the daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wmuxclient.Dial(true)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Send(protocol.NewPingRequest()); err != nil {
				return err
			}
			ev, err := c.Recv()
			if err != nil {
				return err
			}
			pong, ok := ev.(protocol.PongEvent)
			if !ok {
				return unexpectedEvent(ev)
			}
			fmt.Printf("pong %s\n", pong.ServerTime.Format(time.RFC3339))
			return nil
		},
	}
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wmuxclient.Dial(true)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Send(protocol.NewListRequest()); err != nil {
				return err
			}
			ev, err := c.Recv()
			if err != nil {
				return err
			}
			sessions, ok := ev.(protocol.SessionsEvent)
			if !ok {
				return unexpectedEvent(ev)
			}
			if len(sessions.Sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, s := range sessions.Sessions {
				fmt.Printf("%-8s  %-16s  %-8s  %5dx%-5d  pid=%-8d  %s\n",
					s.ID[:8], s.Name, s.State, s.Cols, s.Rows, s.Pid, s.Shell)
			}
			return nil
		},
	}
}

func newNewCmd() *cobra.Command {
	var name, shell, cwd string
	var cols, rows int

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wmuxclient.Dial(true)
			if err != nil {
				return err
			}
			defer c.Close()

			req := protocol.NewCreateSessionRequest(name, shell, cwd, nil, cols, rows)
			if err := c.Send(req); err != nil {
				return err
			}
			ev, err := c.Recv()
			if err != nil {
				return err
			}
			created, ok := ev.(protocol.CreatedEvent)
			if !ok {
				return unexpectedEvent(ev)
			}
			fmt.Println(created.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "session name")
	cmd.Flags().StringVarP(&shell, "shell", "s", "", "shell to run (defaults to configured shell)")
	cmd.Flags().StringVarP(&cwd, "cwd", "C", "", "working directory (defaults to configured cwd)")
	cmd.Flags().IntVarP(&cols, "cols", "c", 0, "terminal width")
	cmd.Flags().IntVarP(&rows, "rows", "r", 0, "terminal height")
	return cmd
}

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <idOrName>",
		Short: "Attach to a session's live output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wmuxclient.Dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			return clientui.Attach(c, args[0])
		},
	}
}

func newKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <idOrName>",
		Short: "Terminate a session's process tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wmuxclient.Dial(true)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Send(protocol.NewKillRequest(args[0])); err != nil {
				return err
			}
			ev, err := c.Recv()
			if err != nil {
				return err
			}
			switch e := ev.(type) {
			case protocol.AckEvent:
				fmt.Println("kill signal sent")
				return nil
			case protocol.ErrorEvent:
				return fmt.Errorf("%s", e.Message)
			default:
				return unexpectedEvent(ev)
			}
		},
	}
}

func newResizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resize <idOrName> <cols> <rows>",
		Short: "Resize a session's pseudoconsole",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid cols %q: %w", args[1], err)
			}
			rows, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid rows %q: %w", args[2], err)
			}

			c, err := wmuxclient.Dial(true)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Send(protocol.NewResizeRequest(args[0], cols, rows)); err != nil {
				return err
			}

			// Resize has no success reply on the wire — only a failure
			// produces an Error event — so give the daemon a brief
			// window to report one before treating silence as success.
			c.Conn().SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			ev, err := c.Recv()
			if err != nil {
				return nil
			}
			if e, ok := ev.(protocol.ErrorEvent); ok {
				return fmt.Errorf("%s", e.Message)
			}
			return nil
		},
	}
}

func unexpectedEvent(ev protocol.Event) error {
	return fmt.Errorf("unexpected reply: %T", ev)
}

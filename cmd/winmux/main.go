// Command winmux is both the daemon and the client CLI for WinMux's
// PTY-backed terminal multiplexer: most subcommands are thin wrappers
// around a connection to the daemon's named pipe, and the hidden
// __daemon subcommand is what daemonboot.Start re-execs into.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/winmux/winmux/internal/daemonboot"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "winmux",
		Short:         "A Windows PTY session multiplexer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newPingCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newAttachCmd())
	cmd.AddCommand(newKillCmd())
	cmd.AddCommand(newResizeCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newHiddenDaemonCmd())

	return cmd
}

// newHiddenDaemonCmd wires up the __daemon subcommand daemonboot.Start
// re-execs into. It is deliberately not discoverable via --help.
func newHiddenDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    daemonboot.DaemonSubcommand,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
	return cmd
}

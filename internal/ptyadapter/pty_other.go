//go:build !windows

package ptyadapter

import "github.com/winmux/winmux/internal/winsec"

// Open is unsupported off Windows. WinMux's PTY adapter targets the
// ConPTY API only (see spec Non-goals: no cross-platform PTY
// abstraction); this stub exists so the module — and the platform-
// agnostic tests in internal/session, which depend only on the PTY
// interface via a fake — still build on a non-Windows machine.
func Open(spec Spec) (*Handle, error) {
	return nil, winsec.ErrUnsupportedPlatform
}

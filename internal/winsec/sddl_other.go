//go:build !windows

package winsec

import "errors"

// ErrUnsupportedPlatform is returned by the Windows-only helpers in this
// package when built for a non-Windows GOOS. WinMux's daemon targets
// Windows only (see spec Non-goals: no cross-platform PTY abstraction);
// this stub exists so the rest of the module — and its platform-agnostic
// tests — still build on a developer's non-Windows machine.
var ErrUnsupportedPlatform = errors.New("winsec: unsupported platform")

// CurrentUserSDDL mirrors the Windows implementation's signature.
func CurrentUserSDDL() (string, error) {
	return "", ErrUnsupportedPlatform
}

// Package wmuxlog configures the daemon's structured logger: a
// log/slog JSON handler writing to the daemon's log file, the same
// library this kind of service uses elsewhere in the pack
// (avkcode-xrunner's cmd/api, bureau-foundation-bureau's messaging and
// sandbox packages).
package wmuxlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Open opens (creating if necessary) the log file at path and returns a
// *slog.Logger writing JSON records to it at minLevel and above. The
// caller owns the returned file and should Close it on shutdown.
func Open(path string, minLevel slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("wmuxlog: mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("wmuxlog: open %s: %w", path, err)
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: minLevel})
	return slog.New(handler), f, nil
}

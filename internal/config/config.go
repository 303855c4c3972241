// Package config loads WinMux's optional JSON configuration document
// (spec §6) and expands its %NAME% environment references.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config holds the recognised configuration keys, already defaulted and
// expanded.
type Config struct {
	DefaultShell string `json:"defaultShell"`
	DefaultCwd   string `json:"defaultCwd"`
	MaxSessions  int    `json:"maxSessions"`
	BufferSize   int    `json:"bufferSize"`
}

// Defaults returns the configuration WinMux uses when no config file is
// present, or a key is omitted from one that is.
func Defaults() *Config {
	return &Config{
		DefaultShell: "pwsh.exe",
		DefaultCwd:   "%USERPROFILE%",
		MaxSessions:  50,
		BufferSize:   4096,
	}
}

// Dir returns the directory WinMux keeps its config, log, and PID file
// in: $WINMUX_HOME if set, else %USERPROFILE%\.winmux.
func Dir() string {
	if d := os.Getenv("WINMUX_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("USERPROFILE")
	}
	return filepath.Join(home, ".winmux")
}

// Path is the config file's location within Dir().
func Path() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads the config file at Path(), if any, merges it over Defaults,
// and expands %NAME% references in DefaultShell/DefaultCwd. A missing
// file is not an error — Load just returns the defaults.
func Load() (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return expand(cfg), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", Path(), err)
	}

	// The config is hand-authored, so it is parsed as JSONC (JSON
	// extended with // and /* */ comments and trailing commas) before
	// being unmarshaled — plain JSON is valid JSONC, so spec's literal
	// "a single optional JSON document" still holds.
	stripped := jsonc.ToJSON(data)
	if err := json.Unmarshal(stripped, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", Path(), err)
	}

	return expand(cfg), nil
}

func expand(cfg *Config) *Config {
	cfg.DefaultShell = expandPercentVars(cfg.DefaultShell)
	cfg.DefaultCwd = expandPercentVars(cfg.DefaultCwd)
	return cfg
}

// expandPercentVars substitutes Windows-style %NAME% references with
// the named environment variable's value. Unmatched or unknown %...%
// forms are left as-is.
func expandPercentVars(s string) string {
	var out strings.Builder
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			out.WriteString(s)
			break
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			out.WriteString(s)
			break
		}
		end += start + 1

		out.WriteString(s[:start])
		name := s[start+1 : end]
		if v, ok := os.LookupEnv(name); ok {
			out.WriteString(v)
		} else {
			out.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	return out.String()
}

package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Application directory name used across all platforms.
const appName = "verbi"

// Config file name.
const configFileName = "config.toml"

// dirKind selects one of the platform base directories.
type dirKind int

const (
	dirConfig dirKind = iota
	dirData
	dirCache
)

// xdgLayout describes where a directory kind lives on XDG systems and macOS.
var xdgLayout = map[dirKind]struct {
	env      string   // XDG override variable
	fallback []string // path under $HOME when env is unset
	darwin   []string // path under $HOME on macOS
}{
	dirConfig: {"XDG_CONFIG_HOME", []string{".config"}, []string{"Library", "Application Support"}},
	dirData:   {"XDG_DATA_HOME", []string{".local", "share"}, []string{"Library", "Application Support"}},
	dirCache:  {"XDG_CACHE_HOME", []string{".cache"}, []string{"Library", "Caches"}},
}

// platformDir resolves the verbi directory of the given kind. Linux honors
// the XDG variables; macOS uses ~/Library. Returns "" when the home
// directory is unknown.
func platformDir(kind dirKind) string {
	layout := xdgLayout[kind]

	if runtime.GOOS == "linux" {
		if xdg := os.Getenv(layout.env); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	parts := layout.fallback
	if runtime.GOOS == "darwin" {
		parts = layout.darwin
	}

	elems := append([]string{home}, parts...)

	return filepath.Join(append(elems, appName)...)
}

// DefaultConfigDir returns the platform-specific directory for config files
// (~/.config/verbi on Linux).
func DefaultConfigDir() string { return platformDir(dirConfig) }

// DefaultDataDir returns the platform-specific directory for the credential
// file (~/.local/share/verbi on Linux).
func DefaultDataDir() string { return platformDir(dirData) }

// DefaultCacheDir returns the platform-specific directory for downloaded
// previews (~/.cache/verbi on Linux).
func DefaultCacheDir() string { return platformDir(dirCache) }

// DefaultConfigPath returns the full path to the default config file.
// This is the fallback when neither VERBI_CONFIG nor --config is specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

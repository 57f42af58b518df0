package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns the config and the path it was loaded from.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, string, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	if env.BaseURL != "" {
		cfg.Server.BaseURL = env.BaseURL
	}

	if env.TokenFile != "" {
		cfg.Session.TokenFile = env.TokenFile
	}

	if cli.BaseURL != nil {
		cfg.Server.BaseURL = *cli.BaseURL
	}

	cfg.Session.TokenFile = expandTilde(cfg.Session.TokenFile)
	cfg.Library.CacheDir = expandTilde(cfg.Library.CacheDir)
	cfg.Library.KnownHosts = expandTilde(cfg.Library.KnownHosts)

	// Overrides bypass Load's validation, so check the merged result again.
	if err := Validate(cfg); err != nil {
		return nil, cfgPath, fmt.Errorf("config validation: %w", err)
	}

	return cfg, cfgPath, nil
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return home + path[1:]
}

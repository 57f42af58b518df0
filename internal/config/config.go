// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for verbi. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Network NetworkConfig `toml:"network" json:"network"`
	Session SessionConfig `toml:"session" json:"session"`
	Library LibraryConfig `toml:"library" json:"library"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// ServerConfig holds the base URLs of the backend services. Auth and
// profile share BaseURL; documents and the LLM run as separate services.
type ServerConfig struct {
	BaseURL      string `toml:"base_url" json:"base_url"`
	DocumentsURL string `toml:"documents_url" json:"documents_url"`
	LLMURL       string `toml:"llm_url" json:"llm_url"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout" json:"connect_timeout"`
	RequestTimeout string `toml:"request_timeout" json:"request_timeout"`
	UserAgent      string `toml:"user_agent" json:"user_agent"`
	MaxRetries     int    `toml:"max_retries" json:"max_retries"`
}

// SessionConfig controls credential persistence and token refresh.
type SessionConfig struct {
	TokenFile      string `toml:"token_file" json:"token_file"`
	RefreshTimeout string `toml:"refresh_timeout" json:"refresh_timeout"`
}

// LibraryConfig controls the document library.
type LibraryConfig struct {
	UserID         uint64 `toml:"user_id" json:"user_id"`
	CacheDir       string `toml:"cache_dir" json:"cache_dir"`
	PreviewWorkers int    `toml:"preview_workers" json:"preview_workers"`
	KnownHosts     string `toml:"known_hosts" json:"known_hosts"` // empty = accept any host key
}

// LoggingConfig controls log output behavior: level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" json:"log_level"`
	LogFormat string `toml:"log_format" json:"log_format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	BaseURL    *string // --base-url flag
}

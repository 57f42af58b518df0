package config

import "path/filepath"

// Default values for configuration options. These are "layer 0" of the
// override chain.
const (
	defaultBaseURL        = "http://localhost:8080/api/v1"
	defaultDocumentsURL   = "http://localhost:8081/api/v1"
	defaultLLMURL         = "http://localhost:8082/api/v1"
	defaultConnectTimeout = "10s"
	defaultRequestTimeout = "60s"
	defaultMaxRetries     = 3
	defaultRefreshTimeout = "30s"
	defaultUserID         = 1
	defaultPreviewWorkers = 4
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	tokenFileName         = "credentials.json"
)

// DefaultConfig returns a Config populated with all default values.
// It is the starting point for TOML decoding, so unset fields keep their
// defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:      defaultBaseURL,
			DocumentsURL: defaultDocumentsURL,
			LLMURL:       defaultLLMURL,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			RequestTimeout: defaultRequestTimeout,
			MaxRetries:     defaultMaxRetries,
		},
		Session: SessionConfig{
			TokenFile:      defaultTokenFile(),
			RefreshTimeout: defaultRefreshTimeout,
		},
		Library: LibraryConfig{
			UserID:         defaultUserID,
			CacheDir:       DefaultCacheDir(),
			PreviewWorkers: defaultPreviewWorkers,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}

func defaultTokenFile() string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, tokenFileName)
}

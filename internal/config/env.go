package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "VERBI_CONFIG"
	EnvBaseURL   = "VERBI_BASE_URL"
	EnvTokenFile = "VERBI_TOKEN_FILE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // VERBI_CONFIG: override config file path
	BaseURL    string // VERBI_BASE_URL: auth/profile service URL
	TokenFile  string // VERBI_TOKEN_FILE: credential file path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		BaseURL:    os.Getenv(EnvBaseURL),
		TokenFile:  os.Getenv(EnvTokenFile),
	}
}

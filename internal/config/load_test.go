package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[server]
base_url = "https://auth.example/api/v1"
documents_url = "https://docs.example/api/v1"
llm_url = "https://llm.example/api/v1"

[network]
connect_timeout = "5s"
request_timeout = "2m"
user_agent = "verbi-test"
max_retries = 0

[session]
token_file = "/tmp/verbi/creds.json"
refresh_timeout = "15s"

[library]
user_id = 42
cache_dir = "/tmp/verbi/cache"
preview_workers = 8
known_hosts = "/tmp/verbi/known_hosts"

[logging]
log_level = "debug"
log_format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example/api/v1", cfg.Server.BaseURL)
	assert.Equal(t, "https://docs.example/api/v1", cfg.Server.DocumentsURL)
	assert.Equal(t, "https://llm.example/api/v1", cfg.Server.LLMURL)
	assert.Equal(t, "5s", cfg.Network.ConnectTimeout)
	assert.Equal(t, "verbi-test", cfg.Network.UserAgent)
	assert.Equal(t, 0, cfg.Network.MaxRetries)
	assert.Equal(t, "/tmp/verbi/creds.json", cfg.Session.TokenFile)
	assert.Equal(t, uint64(42), cfg.Library.UserID)
	assert.Equal(t, 8, cfg.Library.PreviewWorkers)
	assert.Equal(t, "/tmp/verbi/known_hosts", cfg.Library.KnownHosts)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, "[library]\nuser_id = 7\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), cfg.Library.UserID)
	assert.Equal(t, defaultBaseURL, cfg.Server.BaseURL)
	assert.Equal(t, defaultPreviewWorkers, cfg.Library.PreviewWorkers)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "[server\nbase_url = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationErrorsAccumulate(t *testing.T) {
	path := writeTestConfig(t, `
[server]
base_url = "ftp://nope"

[logging]
log_level = "verbose"
log_format = "xml"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "log_format")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_Precedence(t *testing.T) {
	path := writeTestConfig(t, "[server]\nbase_url = \"https://file.example/api/v1\"\n")

	cfg, got, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "https://file.example/api/v1", cfg.Server.BaseURL)

	cfg, _, err = Resolve(EnvOverrides{ConfigPath: path, BaseURL: "https://env.example/api/v1"}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/api/v1", cfg.Server.BaseURL)

	flag := "https://flag.example/api/v1"
	cfg, _, err = Resolve(
		EnvOverrides{ConfigPath: path, BaseURL: "https://env.example/api/v1"},
		CLIOverrides{BaseURL: &flag},
	)
	require.NoError(t, err)
	assert.Equal(t, flag, cfg.Server.BaseURL)
}

func TestResolve_CLIConfigPathWins(t *testing.T) {
	envPath := writeTestConfig(t, "[library]\nuser_id = 1\n")
	cliPath := writeTestConfig(t, "[library]\nuser_id = 2\n")

	cfg, got, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, cliPath, got)
	assert.Equal(t, uint64(2), cfg.Library.UserID)
}

func TestResolve_TokenFileEnvAndTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, _, err := Resolve(
		EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), TokenFile: "~/creds.json"},
		CLIOverrides{},
	)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "creds.json"), cfg.Session.TokenFile)
}

func TestResolve_InvalidOverride(t *testing.T) {
	bad := "not a url"

	_, _, err := Resolve(EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")}, CLIOverrides{BaseURL: &bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

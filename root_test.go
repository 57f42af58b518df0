package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verbi-app/verbi/internal/account"
	"github.com/verbi-app/verbi/internal/apitest"
	"github.com/verbi-app/verbi/internal/config"
	"github.com/verbi-app/verbi/internal/document"
	"github.com/verbi-app/verbi/internal/session"
)

// cliHarness runs the real command tree against a fake backend. Every run
// shares one config file and one credential file, like consecutive
// invocations of the binary.
type cliHarness struct {
	backend   *apitest.Server
	cfgPath   string
	tokenFile string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()

	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvTokenFile, "")

	backend := apitest.New(t)
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "credentials.json")

	cfg := fmt.Sprintf(`[server]
base_url = %[1]q
documents_url = %[1]q
llm_url = %[1]q

[network]
max_retries = 0

[session]
token_file = %[2]q

[library]
cache_dir = %[3]q

[logging]
log_level = "error"
log_format = "text"
`, backend.BaseURL(), tokenFile, filepath.Join(dir, "cache"))

	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &cliHarness{backend: backend, cfgPath: cfgPath, tokenFile: tokenFile}
}

// run executes one command line and returns stdout and stderr.
func (h *cliHarness) run(stdin string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func (h *cliHarness) login(t *testing.T) {
	t.Helper()

	_, stderr, err := h.run(apitest.Password+"\n", "login", apitest.Username)
	require.NoError(t, err)
	require.Contains(t, stderr, "Login successful.")
}

func TestCLI_LoginWhoamiStatusLogout(t *testing.T) {
	h := newCLIHarness(t)
	h.login(t)

	stdout, _, err := h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, "User:  "+apitest.Username)
	assert.Contains(t, stdout, "Email: "+apitest.Email)

	stdout, _, err = h.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session: signed in")
	assert.Contains(t, stdout, apitest.Username)

	_, stderr, err := h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Logged out.")

	stdout, _, err = h.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Not logged in")
}

func TestCLI_LoginWrongPassword(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run("wrong\n", "login", apitest.Username)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong email, username or password")
}

func TestCLI_LoginEmptyPassword(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run("", "login", apitest.Username)
	require.Error(t, err)
	assert.Zero(t, h.backend.Hits("GET /auth/login"))
}

func TestCLI_ExpiredTokenRefreshedTransparently(t *testing.T) {
	h := newCLIHarness(t)
	h.login(t)
	h.backend.ExpireAccess()

	stdout, _, err := h.run("", "--json", "ls")
	require.NoError(t, err)

	var entries []lsEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	assert.Empty(t, entries)
	assert.Equal(t, 1, h.backend.RefreshCalls())
}

func TestCLI_RevokedSessionAsksForLogin(t *testing.T) {
	h := newCLIHarness(t)
	h.login(t)
	h.backend.ExpireAccess()
	h.backend.RevokeRefresh()

	_, _, err := h.run("", "whoami")
	require.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Contains(t, errorMessage(err), "verbi login")

	// The forced logout cleared the credential file.
	_, statErr := os.Stat(h.tokenFile)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestCLI_NotLoggedIn(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run("", "whoami")
	require.Error(t, err)
	assert.Equal(t, "not logged in. Run 'verbi login' first.", errorMessage(err))
	assert.Zero(t, h.backend.RefreshCalls())

	_, _, err = h.run("", "logout")
	assert.ErrorIs(t, err, account.ErrNotLoggedIn)
}

func TestCLI_Ask(t *testing.T) {
	h := newCLIHarness(t)
	h.login(t)
	h.backend.SetAnswer("The spice must flow.")

	stdout, _, err := h.run("", "ask", "question", "Paul", "Atreides", "--question", "Who is he?", "--book", "Dune")
	require.NoError(t, err)
	assert.Equal(t, "The spice must flow.\n", stdout)

	req := h.backend.LastLLMRequest()
	assert.Equal(t, "Paul Atreides", req.Query)
	assert.Equal(t, "question", req.QueryType)
	assert.Equal(t, "Who is he?", req.Prompt)
	assert.Equal(t, "Dune", req.Book)
}

func TestCLI_AskUnknownAction(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run("", "ask", "translate", "hello")
	assert.ErrorIs(t, err, document.ErrUnknownAction)
	assert.Zero(t, h.backend.Hits("POST /llm/response"))
}

func TestCLI_RegisterAndConfirm(t *testing.T) {
	h := newCLIHarness(t)

	_, stderr, err := h.run("s3cret\n", "register", "paul@example.com", "paul")
	require.NoError(t, err)
	assert.Contains(t, stderr, "confirm-email paul@example.com")

	_, stderr, err = h.run("", "confirm-email", "paul@example.com", "123456")
	require.NoError(t, err)
	assert.Contains(t, stderr, "email confirmed")
}

func TestCLI_ProfileUpdateAndDelete(t *testing.T) {
	h := newCLIHarness(t)
	h.login(t)

	_, _, err := h.run("", "profile", "update", "chani")
	require.NoError(t, err)
	assert.Equal(t, "chani", h.backend.Username())

	_, _, err = h.run("", "profile", "delete")
	require.Error(t, err)
	assert.False(t, h.backend.AccountDeleted())

	_, _, err = h.run("", "profile", "delete", "--yes")
	require.NoError(t, err)
	assert.True(t, h.backend.AccountDeleted())

	stdout, _, err := h.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Not logged in")
}

func TestCLI_RmValidatesID(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run("", "rm", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid document id")
}

func TestCLI_ConfigShow(t *testing.T) {
	h := newCLIHarness(t)

	stdout, _, err := h.run("", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, h.cfgPath)
	assert.Contains(t, stdout, h.backend.BaseURL())

	stdout, _, err = h.run("", "--json", "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, 0, cfg.Network.MaxRetries)
}

func TestCLI_BaseURLFlagOverridesConfig(t *testing.T) {
	h := newCLIHarness(t)

	stdout, _, err := h.run("", "--base-url", "https://auth.example/api/v1", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"https://auth.example/api/v1"`)
}

func TestCLI_InvalidConfig(t *testing.T) {
	h := newCLIHarness(t)
	require.NoError(t, os.WriteFile(h.cfgPath, []byte("[server]\nbase_ulr = \"x\"\n"), 0o600))

	_, _, err := h.run("", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "base_url"`)
}

func TestBuildLogger_Levels(t *testing.T) {
	cfg := config.DefaultConfig()
	ctx := context.Background()

	logger := buildLogger(cfg, CLIFlags{}, io.Discard)
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))

	logger = buildLogger(cfg, CLIFlags{Verbose: true}, io.Discard)
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))

	logger = buildLogger(cfg, CLIFlags{Quiet: true}, io.Discard)
	assert.False(t, logger.Enabled(ctx, slog.LevelWarn))
	assert.True(t, logger.Enabled(ctx, slog.LevelError))

	cfg.Logging.LogLevel = "warn"
	logger = buildLogger(cfg, CLIFlags{}, io.Discard)
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
}

func TestBuildLogger_Format(t *testing.T) {
	cfg := config.DefaultConfig()

	var buf bytes.Buffer

	// A buffer is not a terminal, so "auto" picks JSON.
	buildLogger(cfg, CLIFlags{}, &buf).Info("hello")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())), buf.String())

	buf.Reset()
	cfg.Logging.LogFormat = "text"
	buildLogger(cfg, CLIFlags{}, &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestErrorMessage(t *testing.T) {
	expired := fmt.Errorf("%w: %w", session.ErrSessionExpired, errors.New("invalid refresh token"))
	noToken := fmt.Errorf("%w: %w", session.ErrSessionExpired, session.ErrNoRefreshToken)

	assert.Contains(t, errorMessage(expired), "Your session has ended")
	assert.Equal(t, "not logged in. Run 'verbi login' first.", errorMessage(noToken))
	assert.Equal(t, "not logged in. Run 'verbi login' first.", errorMessage(account.ErrNotLoggedIn))
	assert.Equal(t, "boom", errorMessage(errors.New("boom")))
}

func TestParseDocumentID(t *testing.T) {
	id, err := parseDocumentID("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"", "0", "-1", "x"} {
		_, err := parseDocumentID(bad)
		assert.Error(t, err, bad)
	}
}

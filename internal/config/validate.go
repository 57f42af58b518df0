package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	minPreviewWorkers = 1
	maxPreviewWorkers = 16
	maxRetriesLimit   = 10
	minConnectTimeout = 1 * time.Second
	minRequestTimeout = 5 * time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateSession(&cfg.Session)...)
	errs = append(errs, validateLibrary(&cfg.Library)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	errs = append(errs, validateURL("base_url", s.BaseURL)...)
	errs = append(errs, validateURL("documents_url", s.DocumentsURL)...)
	errs = append(errs, validateURL("llm_url", s.LLMURL)...)

	return errs
}

func validateURL(field, value string) []error {
	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid URL %q: %w", field, value, err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("%s: must be an absolute http(s) URL, got %q", field, value)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("%s: missing host in %q", field, value)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("request_timeout", n.RequestTimeout, minRequestTimeout)...)

	if n.MaxRetries < 0 || n.MaxRetries > maxRetriesLimit {
		errs = append(errs, fmt.Errorf("max_retries: must be between 0 and %d, got %d",
			maxRetriesLimit, n.MaxRetries))
	}

	return errs
}

func validateSession(s *SessionConfig) []error {
	var errs []error

	if s.TokenFile == "" {
		errs = append(errs, errors.New("token_file: must not be empty"))
	}

	// Zero disables the refresh deadline.
	errs = append(errs, validateDurationNonNeg("refresh_timeout", s.RefreshTimeout)...)

	return errs
}

func validateLibrary(l *LibraryConfig) []error {
	var errs []error

	if l.UserID == 0 {
		errs = append(errs, errors.New("user_id: must be positive"))
	}

	if l.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir: must not be empty"))
	}

	if l.PreviewWorkers < minPreviewWorkers || l.PreviewWorkers > maxPreviewWorkers {
		errs = append(errs, fmt.Errorf("preview_workers: must be between %d and %d, got %d",
			minPreviewWorkers, maxPreviewWorkers, l.PreviewWorkers))
	}

	return errs
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

// Durations returns the parsed network and session durations. Validate
// must have accepted cfg; unparsable values come back as zero.
func (c *Config) Durations() (connect, request, refresh time.Duration) {
	connect, _ = time.ParseDuration(c.Network.ConnectTimeout)
	request, _ = time.ParseDuration(c.Network.RequestTimeout)
	refresh, _ = time.ParseDuration(c.Session.RefreshTimeout)

	return connect, request, refresh
}

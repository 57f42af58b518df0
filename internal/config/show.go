package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", path)

	ew.printf("[server]\n")
	ew.printf("  base_url        = %q\n", cfg.Server.BaseURL)
	ew.printf("  documents_url   = %q\n", cfg.Server.DocumentsURL)
	ew.printf("  llm_url         = %q\n\n", cfg.Server.LLMURL)

	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", cfg.Network.ConnectTimeout)
	ew.printf("  request_timeout = %q\n", cfg.Network.RequestTimeout)

	if cfg.Network.UserAgent != "" {
		ew.printf("  user_agent      = %q\n", cfg.Network.UserAgent)
	}

	ew.printf("  max_retries     = %d\n\n", cfg.Network.MaxRetries)

	ew.printf("[session]\n")
	ew.printf("  token_file      = %q\n", cfg.Session.TokenFile)
	ew.printf("  refresh_timeout = %q\n\n", cfg.Session.RefreshTimeout)

	ew.printf("[library]\n")
	ew.printf("  user_id         = %d\n", cfg.Library.UserID)
	ew.printf("  cache_dir       = %q\n", cfg.Library.CacheDir)
	ew.printf("  preview_workers = %d\n", cfg.Library.PreviewWorkers)
	ew.printf("  known_hosts     = %q\n\n", cfg.Library.KnownHosts)

	ew.printf("[logging]\n")
	ew.printf("  log_level       = %q\n", cfg.Logging.LogLevel)
	ew.printf("  log_format      = %q\n", cfg.Logging.LogFormat)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

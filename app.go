package main

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/verbi-app/verbi/internal/account"
	"github.com/verbi-app/verbi/internal/api"
	"github.com/verbi-app/verbi/internal/config"
	"github.com/verbi-app/verbi/internal/document"
	"github.com/verbi-app/verbi/internal/library"
	"github.com/verbi-app/verbi/internal/session"
	"github.com/verbi-app/verbi/internal/sftpstore"
	"github.com/verbi-app/verbi/internal/tokenfile"
)

// App wires the credential store, the API clients, and the interactors
// around one shared session Manager, so a 401 seen by any of them joins the
// same refresh.
type App struct {
	Store    *tokenfile.Store
	Session  *session.Manager
	Account  *account.Interactor
	Library  *library.Interactor
	Document *document.Interactor
}

// NewApp builds the App from resolved config.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	connectTimeout, requestTimeout, refreshTimeout := cfg.Durations()

	httpClient := newHTTPClient(connectTimeout, requestTimeout)
	store := tokenfile.NewStore(cfg.Session.TokenFile, logger)

	newClient := func(baseURL string) *api.Client {
		c := api.NewClient(baseURL, httpClient, store, logger, cfg.Network.UserAgent)
		c.MaxRetries = cfg.Network.MaxRetries

		return c
	}

	auth := newClient(cfg.Server.BaseURL)
	docs := newClient(cfg.Server.DocumentsURL)
	llm := newClient(cfg.Server.LLMURL)

	mgr := session.NewManager(store, auth, logger)
	mgr.RefreshTimeout = refreshTimeout
	mgr.OnExpired = func(err error) {
		logger.Warn("session expired, signed out", slog.String("error", err.Error()))
	}

	files := sftpstore.NewDialer(sftpstore.Options{
		Timeout:    connectTimeout,
		KnownHosts: cfg.Library.KnownHosts,
	}, logger)

	logger.Debug("app initialized",
		slog.String("base_url", cfg.Server.BaseURL),
		slog.String("documents_url", cfg.Server.DocumentsURL),
		slog.String("llm_url", cfg.Server.LLMURL),
		slog.String("token_file", cfg.Session.TokenFile),
	)

	return &App{
		Store:   store,
		Session: mgr,
		Account: account.NewInteractor(auth, mgr, store, logger),
		Library: library.NewInteractor(docs, mgr, files, library.Options{
			UserID:         cfg.Library.UserID,
			CacheDir:       cfg.Library.CacheDir,
			PreviewWorkers: cfg.Library.PreviewWorkers,
		}, logger),
		Document: document.NewInteractor(docs, llm, mgr, files, cfg.Library.UserID, logger),
	}
}

// newHTTPClient returns a client with a bounded connect phase and an overall
// per-request timeout. Hung connections must not block commands forever.
func newHTTPClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return &http.Client{Timeout: requestTimeout, Transport: transport}
}

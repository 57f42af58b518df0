// Package session owns the authenticated session: it refreshes the access
// token when the API rejects it, coalesces concurrent rejections into a
// single refresh call, and ends the session when the refresh fails.
//
// Manager is the single authority for the refresh protocol. Call wraps an
// authorized API operation so that a 401 is routed through the Manager and
// the operation is re-issued once the session has been refreshed. All
// feature code shares one Manager so 401s from unrelated operations still
// coalesce.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store is the credential store the Manager reads and writes through. It is
// defined here, at the consumer, and satisfied by *tokenfile.Store.
type Store interface {
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	// Save stores a new access token. An empty refreshToken keeps the
	// stored one.
	Save(accessToken, refreshToken string) error
	Clear() error
	SetAuthorized(authorized bool) error
	Authorized() bool
}

// Refresher exchanges a refresh token for a new access token. Satisfied by
// *api.Client.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Flight tracks one refresh cycle. Every caller whose 401 was absorbed by the
// cycle holds the same Flight.
type Flight struct {
	done chan struct{}
	err  error

	// Guarded by Manager.mu.
	gen     uint64
	pending []func()
}

// Done is closed once the cycle has resolved: on success after every retry
// has been invoked, on failure after the session has been cleared.
func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// Err returns nil if the refresh succeeded, or an error wrapping
// ErrSessionExpired if the session was terminated. Only meaningful after
// Done is closed.
func (f *Flight) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Manager coordinates access-token refreshes for one session. It holds no
// copy of the credentials; every read and write goes through the Store.
type Manager struct {
	store     Store
	refresher Refresher
	logger    *slog.Logger

	// RefreshTimeout bounds a single refresh call. Zero means no timeout.
	RefreshTimeout time.Duration

	// OnExpired, if set, is called after a forced logout with the error that
	// ended the session. Called without the manager lock held.
	OnExpired func(err error)

	// mu guards flight and gen, and serializes store mutations with the
	// refresh state transition.
	mu     sync.Mutex
	flight *Flight // non-nil while a refresh for the current session is in flight

	// gen identifies the current session. Establish and SignOut bump it; a
	// flight started under an older generation is stale when it settles.
	gen uint64
}

// NewManager creates a Manager over the given store and refresher.
func NewManager(store Store, refresher Refresher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:     store,
		refresher: refresher,
		logger:    logger,
	}
}

// HandleUnauthorized reacts to an operation that failed with 401. retry
// re-issues that operation. It never blocks on network I/O.
//
// If a refresh is already in flight, retry is queued and the in-flight
// Flight is returned. Otherwise a new refresh starts on its own goroutine.
// On success the triggering retry is invoked first, then every queued retry
// in enqueue order. On failure the store is cleared and no retry is invoked.
//
// Retries run while the manager is locked, so a 401 that arrives during the
// drain waits for it and then sees the manager idle. retry must therefore
// hand the work off (for example by signalling a waiting goroutine) rather
// than block or call back into the Manager.
func (m *Manager) HandleUnauthorized(ctx context.Context, retry func()) *Flight {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.flight != nil {
		m.flight.pending = append(m.flight.pending, retry)
		m.logger.Debug("refresh in flight, queued retry",
			slog.Int("queued", len(m.flight.pending)),
		)

		return m.flight
	}

	f := &Flight{done: make(chan struct{}), gen: m.gen}
	m.flight = f

	m.logger.Info("access token rejected, refreshing session")

	// The refresh outlives the caller that triggered it: other callers may
	// be queued on it.
	go m.run(context.WithoutCancel(ctx), f, retry)

	return f
}

// run performs the refresh for flight f and settles it.
func (m *Manager) run(ctx context.Context, f *Flight, retry func()) {
	token, err := m.refresh(ctx)

	if err = m.settle(f, token, err, retry); err != nil && m.OnExpired != nil {
		m.OnExpired(err)
	}
}

// refresh reads the refresh token and calls the refresh endpoint. No network
// call is made when there is no refresh token.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	refreshToken, ok := m.store.RefreshToken()
	if !ok {
		return "", ErrNoRefreshToken
	}

	if m.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.RefreshTimeout)
		defer cancel()
	}

	start := time.Now()

	token, err := m.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	m.logger.Debug("refresh call succeeded", slog.Duration("elapsed", time.Since(start)))

	return token, nil
}

// settle applies the refresh outcome under the lock and resolves f. It
// returns the error that forced a logout, if any.
func (m *Manager) settle(f *Flight, token string, refreshErr error, retry func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer close(f.done)

	queued := f.pending
	f.pending = nil

	if m.flight == f {
		m.flight = nil
	}

	// The session this refresh belonged to was ended or replaced while the
	// call was pending. Its result must not touch the store.
	if f.gen != m.gen {
		m.logger.Info("session changed during refresh, discarding result",
			slog.Int("discarded", len(queued)+1),
		)

		f.err = fmt.Errorf("%w: %w", ErrSessionExpired, ErrSuperseded)

		return nil
	}

	if refreshErr == nil {
		refreshErr = m.store.Save(token, "")
	}

	if refreshErr != nil {
		m.logger.Warn("session refresh failed, signing out",
			slog.Int("discarded", len(queued)),
			slog.String("error", refreshErr.Error()),
		)

		m.clear()
		f.err = fmt.Errorf("%w: %w", ErrSessionExpired, refreshErr)

		return f.err
	}

	if err := m.store.SetAuthorized(true); err != nil {
		m.logger.Warn("failed to mark session authorized", slog.String("error", err.Error()))
	}

	m.logger.Info("session refreshed", slog.Int("retries", len(queued)+1))

	retry()

	for _, r := range queued {
		r()
	}

	return nil
}

// Establish stores a freshly issued session and marks it authorized.
func (m *Manager) Establish(accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.supersede()

	if err := m.store.Save(accessToken, refreshToken); err != nil {
		return fmt.Errorf("session: storing credentials: %w", err)
	}

	if err := m.store.SetAuthorized(true); err != nil {
		return fmt.Errorf("session: marking authorized: %w", err)
	}

	m.logger.Info("session established")

	return nil
}

// SignOut ends the session on purpose (logout, account deletion): it clears
// the store and marks the session unauthorized, the same end state as a
// forced logout. A refresh still in flight is discarded when it returns and
// its retries fail with ErrSuperseded.
func (m *Manager) SignOut() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.supersede()
	m.clear()
	m.logger.Info("signed out")
}

// supersede starts a new session generation and detaches any in-flight
// refresh from it. Caller must hold mu.
func (m *Manager) supersede() {
	m.gen++
	m.flight = nil
}

// clear wipes the store. Failures are logged; the caller's outcome does not
// change because of them. Caller must hold mu.
func (m *Manager) clear() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear credentials", slog.String("error", err.Error()))
	}

	if err := m.store.SetAuthorized(false); err != nil {
		m.logger.Warn("failed to mark session unauthorized", slog.String("error", err.Error()))
	}
}

// Authorized reports whether the stored session is marked authorized.
func (m *Manager) Authorized() bool {
	return m.store.Authorized()
}

// Refreshing reports whether a refresh is in flight.
func (m *Manager) Refreshing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.flight != nil
}

// Queued returns the number of retries waiting behind the in-flight refresh.
func (m *Manager) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.flight == nil {
		return 0
	}

	return len(m.flight.pending)
}

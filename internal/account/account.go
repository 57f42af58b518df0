// Package account implements the account and authentication flows: login,
// registration, password reset, profile management, logout and account
// deletion. Authorized calls run through session.Call so that concurrent
// 401s across every interactor share one refresh.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/verbi-app/verbi/internal/api"
	"github.com/verbi-app/verbi/internal/session"
	"github.com/verbi-app/verbi/internal/tokenfile"
)

// ErrNotLoggedIn is returned by operations that need stored credentials
// when there are none.
var ErrNotLoggedIn = errors.New("account: not logged in")

// ErrMissingField is returned when a required input is empty.
var ErrMissingField = errors.New("account: missing required field")

// API is the subset of the backend client used by the interactor.
type API interface {
	Register(ctx context.Context, email, username, password string) (string, error)
	ConfirmEmail(ctx context.Context, email, code string) (string, error)
	Login(ctx context.Context, emailOrUsername, password string) (*api.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) (string, error)
	ResetPassword(ctx context.Context, email string) (string, error)
	ConfirmResetPassword(ctx context.Context, email, newPassword, code string) (string, error)
	ResendCode(ctx context.Context, email, codeType string) (string, error)
	UserInfo(ctx context.Context) (*api.UserInfo, error)
	UpdateUserInfo(ctx context.Context, username string) (string, error)
	DeleteAccount(ctx context.Context) (string, error)
}

// Store is the credential state the interactor reads directly.
type Store interface {
	RefreshToken() (string, bool)
	MergeMeta(meta map[string]string) error
}

// Interactor runs account operations against the backend.
type Interactor struct {
	api     API
	session *session.Manager
	store   Store
	logger  *slog.Logger
}

// NewInteractor creates an Interactor. mgr must be the process-wide session
// manager shared with the other interactors.
func NewInteractor(client API, mgr *session.Manager, store Store, logger *slog.Logger) *Interactor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Interactor{
		api:     client,
		session: mgr,
		store:   store,
		logger:  logger,
	}
}

// Login authenticates and establishes a new session.
func (i *Interactor) Login(ctx context.Context, emailOrUsername, password string) error {
	if err := requireFields("email or username", emailOrUsername, "password", password); err != nil {
		return err
	}

	res, err := i.api.Login(ctx, emailOrUsername, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	return i.session.Establish(res.AccessToken, res.RefreshToken)
}

// Register creates an account. The returned message tells the user to check
// their inbox for a confirmation code.
func (i *Interactor) Register(ctx context.Context, email, username, password string) (string, error) {
	if err := requireFields("email", email, "username", username, "password", password); err != nil {
		return "", err
	}

	return i.api.Register(ctx, email, username, password)
}

// ConfirmEmail verifies a registration code.
func (i *Interactor) ConfirmEmail(ctx context.Context, email, code string) (string, error) {
	if err := requireFields("email", email, "code", code); err != nil {
		return "", err
	}

	return i.api.ConfirmEmail(ctx, email, code)
}

// ResetPassword requests a password reset code.
func (i *Interactor) ResetPassword(ctx context.Context, email string) (string, error) {
	if err := requireFields("email", email); err != nil {
		return "", err
	}

	return i.api.ResetPassword(ctx, email)
}

// ConfirmResetPassword sets a new password with a reset code.
func (i *Interactor) ConfirmResetPassword(ctx context.Context, email, newPassword, code string) (string, error) {
	if err := requireFields("email", email, "new password", newPassword, "code", code); err != nil {
		return "", err
	}

	return i.api.ConfirmResetPassword(ctx, email, newPassword, code)
}

// ResendCode re-sends an email or password confirmation code.
func (i *Interactor) ResendCode(ctx context.Context, email, codeType string) (string, error) {
	if err := requireFields("email", email); err != nil {
		return "", err
	}

	if codeType != api.CodeTypeEmail && codeType != api.CodeTypePassword {
		return "", fmt.Errorf("account: unknown code type %q (want %q or %q)",
			codeType, api.CodeTypeEmail, api.CodeTypePassword)
	}

	return i.api.ResendCode(ctx, email, codeType)
}

// FetchUserInfo returns the profile and caches it in the credential file.
func (i *Interactor) FetchUserInfo(ctx context.Context) (*api.UserInfo, error) {
	info, err := session.Call(ctx, i.session, i.api.UserInfo)
	if err != nil {
		return nil, err
	}

	i.cacheProfile(map[string]string{
		tokenfile.MetaUsername: info.Username,
		tokenfile.MetaEmail:    info.Email,
	})

	return info, nil
}

// UpdateUserInfo renames the user.
func (i *Interactor) UpdateUserInfo(ctx context.Context, username string) (string, error) {
	if err := requireFields("username", username); err != nil {
		return "", err
	}

	msg, err := session.Call(ctx, i.session, func(ctx context.Context) (string, error) {
		return i.api.UpdateUserInfo(ctx, username)
	})
	if err != nil {
		return "", err
	}

	i.cacheProfile(map[string]string{tokenfile.MetaUsername: username})

	return msg, nil
}

// Logout revokes the refresh token on the server and ends the local
// session. Success via a post-refresh retry ends the session the same way.
func (i *Interactor) Logout(ctx context.Context) (string, error) {
	if _, ok := i.store.RefreshToken(); !ok {
		return "", ErrNotLoggedIn
	}

	msg, err := session.Call(ctx, i.session, func(ctx context.Context) (string, error) {
		// Re-read on every attempt: a retry runs after the store changed.
		refresh, ok := i.store.RefreshToken()
		if !ok {
			return "", ErrNotLoggedIn
		}

		return i.api.Logout(ctx, refresh)
	})
	if err != nil {
		return "", err
	}

	i.session.SignOut()

	return msg, nil
}

// DeleteAccount permanently deletes the account and ends the local session.
func (i *Interactor) DeleteAccount(ctx context.Context) (string, error) {
	msg, err := session.Call(ctx, i.session, i.api.DeleteAccount)
	if err != nil {
		return "", err
	}

	i.logger.Info("account deleted")
	i.session.SignOut()

	return msg, nil
}

func (i *Interactor) cacheProfile(meta map[string]string) {
	if err := i.store.MergeMeta(meta); err != nil {
		i.logger.Warn("failed to cache profile", slog.String("error", err.Error()))
	}
}

// requireFields checks name/value pairs and reports the first empty value.
func requireFields(pairs ...string) error {
	for n := 0; n+1 < len(pairs); n += 2 {
		if pairs[n+1] == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, pairs[n])
		}
	}

	return nil
}

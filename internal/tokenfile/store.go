package tokenfile

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoSession is returned by operations that need an existing credential
// file when none is present.
var ErrNoSession = errors.New("tokenfile: no stored session")

// Store is the credential store backed by a single token file. Every call
// reads or writes the file; nothing is cached in memory. The mutex only
// serializes read-modify-write cycles within this process.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewStore creates a Store for the credential file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{path: path, logger: logger}
}

// Path returns the credential file path.
func (s *Store) Path() string {
	return s.path
}

// AccessToken returns the stored access token, or ("", false) if there is
// none. Unreadable files are logged and treated as absent.
func (s *Store) AccessToken() (string, bool) {
	tf := s.load()
	if tf == nil || tf.Token.AccessToken == "" {
		return "", false
	}

	return tf.Token.AccessToken, true
}

// RefreshToken returns the stored refresh token, or ("", false) if there is
// none.
func (s *Store) RefreshToken() (string, bool) {
	tf := s.load()
	if tf == nil || tf.Token.RefreshToken == "" {
		return "", false
	}

	return tf.Token.RefreshToken, true
}

// Save stores a new access token. An empty refreshToken keeps the stored
// refresh token, which is what a refresh response needs; it returns
// ErrNoSession when there is no stored session to keep, so a refresh never
// creates one. Metadata and the authorized flag are preserved.
func (s *Store) Save(accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := Load(s.path)
	if err != nil {
		return err
	}

	if refreshToken == "" && (tf == nil || tf.Token == nil || tf.Token.RefreshToken == "") {
		return ErrNoSession
	}

	if tf == nil {
		tf = &File{}
	}

	if tf.Token == nil {
		tf.Token = &oauth2.Token{}
	}

	tf.Token.AccessToken = accessToken
	tf.Token.TokenType = "Bearer"
	tf.Token.Expiry = AccessTokenExpiry(accessToken)

	// A new refresh token means a new login; cached profile metadata may
	// belong to another account.
	if refreshToken != "" {
		tf.Token.RefreshToken = refreshToken
		tf.Meta = nil
	}

	if err := Save(s.path, tf); err != nil {
		return err
	}

	s.logger.Debug("stored access token",
		slog.String("path", s.path),
		slog.Time("expiry", tf.Token.Expiry),
		slog.Bool("refresh_token_replaced", refreshToken != ""),
	)

	return nil
}

// Clear removes all stored credentials and cached metadata.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := Remove(s.path); err != nil {
		return err
	}

	s.logger.Info("cleared stored credentials", slog.String("path", s.path))

	return nil
}

// SetAuthorized records whether the stored session is authorized. Marking
// an absent session unauthorized is a no-op; marking it authorized returns
// ErrNoSession.
func (s *Store) SetAuthorized(authorized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := Load(s.path)
	if err != nil {
		return err
	}

	if tf == nil {
		if authorized {
			return ErrNoSession
		}

		return nil
	}

	if tf.Authorized == authorized {
		return nil
	}

	tf.Authorized = authorized

	return Save(s.path, tf)
}

// Authorized reports whether a stored session is marked authorized.
func (s *Store) Authorized() bool {
	tf := s.load()

	return tf != nil && tf.Authorized
}

// Snapshot returns the current file contents, or (nil, nil) when no
// session is stored.
func (s *Store) Snapshot() (*File, error) {
	return Load(s.path)
}

// MergeMeta merges metadata keys into the stored file. New keys overwrite
// existing ones.
func (s *Store) MergeMeta(meta map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := Load(s.path)
	if err != nil {
		return fmt.Errorf("reading token for metadata update: %w", err)
	}

	if tf == nil {
		return ErrNoSession
	}

	if tf.Meta == nil {
		tf.Meta = make(map[string]string, len(meta))
	}

	maps.Copy(tf.Meta, meta)

	return Save(s.path, tf)
}

func (s *Store) load() *File {
	tf, err := Load(s.path)
	if err != nil {
		s.logger.Warn("unreadable credential file, treating as logged out",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	return tf
}

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/verbi-app/verbi/internal/tokenfile"
)

func TestBuildStatus(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no session", func(t *testing.T) {
		s := buildStatus(nil, now)
		assert.Equal(t, tokenStateMissing, s.TokenState)
		assert.False(t, s.SignedIn)
	})

	t.Run("valid token with cached profile", func(t *testing.T) {
		tf := &tokenfile.File{
			Token:      &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: now.Add(time.Minute)},
			Authorized: true,
			Meta:       map[string]string{tokenfile.MetaUsername: "anna", tokenfile.MetaEmail: "anna@example.com"},
		}

		s := buildStatus(tf, now)
		assert.True(t, s.SignedIn)
		assert.Equal(t, tokenStateValid, s.TokenState)
		assert.Equal(t, "anna", s.Username)
		require.NotNil(t, s.TokenExpiry)
		assert.Equal(t, now.Add(time.Minute), *s.TokenExpiry)
	})

	t.Run("expired token", func(t *testing.T) {
		tf := &tokenfile.File{
			Token:      &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: now},
			Authorized: true,
		}

		assert.Equal(t, tokenStateExpired, buildStatus(tf, now).TokenState)
	})

	t.Run("opaque token", func(t *testing.T) {
		tf := &tokenfile.File{Token: &oauth2.Token{AccessToken: "a", RefreshToken: "r"}}

		s := buildStatus(tf, now)
		assert.Equal(t, tokenStateUnknown, s.TokenState)
		assert.Nil(t, s.TokenExpiry)
		assert.False(t, s.SignedIn)
	})
}

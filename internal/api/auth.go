package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Header names used by the auth service instead of a request body.
const (
	passwordHeader     = "Password"
	refreshTokenHeader = "Refresh-Token"
)

// Code types accepted by ResendCode.
const (
	CodeTypeEmail    = "email"
	CodeTypePassword = "password"
)

// message checks a {"message": ...} acknowledgement and returns its text.
func (c *Client) message(ctx context.Context, req *request) (string, error) {
	var mr messageResponse
	if err := c.doJSON(ctx, req, &mr); err != nil {
		return "", err
	}

	if mr.Message == "" {
		return "", fmt.Errorf("%w: %s %s returned no message", ErrInvalidResponse, req.method, req.path)
	}

	return mr.Message, nil
}

// Register creates an account. The server emails a confirmation code.
func (c *Client) Register(ctx context.Context, email, username, password string) (string, error) {
	c.logger.Info("registering account", slog.String("email", email), slog.String("username", username))

	return c.message(ctx, &request{
		method: http.MethodPost,
		path:   "/auth/register",
		body: map[string]string{
			"email":    email,
			"username": username,
			"password": password,
		},
	})
}

// ConfirmEmail verifies the emailed confirmation code.
func (c *Client) ConfirmEmail(ctx context.Context, email, code string) (string, error) {
	return c.message(ctx, &request{
		method: http.MethodGet,
		path:   "/auth/email",
		query:  url.Values{"email": {email}, "code": {code}},
	})
}

// Login exchanges credentials for an access/refresh token pair.
func (c *Client) Login(ctx context.Context, emailOrUsername, password string) (*LoginResult, error) {
	c.logger.Info("logging in", slog.String("user", emailOrUsername))

	var lr loginResponse

	err := c.doJSON(ctx, &request{
		method: http.MethodGet,
		path:   "/auth/login",
		query:  url.Values{"emailOrUsername": {emailOrUsername}},
		header: http.Header{passwordHeader: {password}},
	}, &lr)
	if err != nil {
		return nil, err
	}

	if lr.AccessToken == "" || lr.RefreshToken == "" {
		return nil, fmt.Errorf("%w: login response missing tokens", ErrInvalidResponse)
	}

	return &LoginResult{
		AccessToken:  lr.AccessToken,
		RefreshToken: lr.RefreshToken,
		ExpiresIn:    int(lr.ExpiresIn),
	}, nil
}

// Logout revokes the given refresh token on the server.
func (c *Client) Logout(ctx context.Context, refreshToken string) (string, error) {
	return c.message(ctx, &request{
		method: http.MethodGet,
		path:   "/auth/logout/",
		header: http.Header{refreshTokenHeader: {refreshToken}},
	})
}

// Refresh obtains a new access token. The refresh token itself is not
// rotated. Satisfies session.Refresher.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	c.logger.Debug("refreshing access token")

	var rr refreshResponse

	err := c.doJSON(ctx, &request{
		method: http.MethodGet,
		path:   "/auth/refresh",
		header: http.Header{refreshTokenHeader: {refreshToken}},
	}, &rr)
	if err != nil {
		return "", err
	}

	if rr.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh response missing access_token", ErrInvalidResponse)
	}

	return rr.AccessToken, nil
}

// ResetPassword asks the server to email a password reset code.
func (c *Client) ResetPassword(ctx context.Context, email string) (string, error) {
	return c.message(ctx, &request{
		method: http.MethodGet,
		path:   "/auth/password",
		query:  url.Values{"email": {email}},
	})
}

// ConfirmResetPassword sets a new password using the emailed code.
func (c *Client) ConfirmResetPassword(ctx context.Context, email, newPassword, code string) (string, error) {
	return c.message(ctx, &request{
		method: http.MethodPut,
		path:   "/auth/password",
		body: map[string]string{
			"email":        email,
			"new_password": newPassword,
			"code":         code,
		},
	})
}

// ResendCode re-sends a confirmation code of the given type.
func (c *Client) ResendCode(ctx context.Context, email, codeType string) (string, error) {
	return c.message(ctx, &request{
		method: http.MethodGet,
		path:   "/auth/code",
		query:  url.Values{"email": {email}, "code_type": {codeType}},
	})
}

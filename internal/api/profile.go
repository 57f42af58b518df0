package api

import (
	"context"
	"fmt"
	"net/http"
)

// UserInfo fetches the authenticated user's profile.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var ur userInfoResponse

	if err := c.doJSON(ctx, &request{method: http.MethodGet, path: "/profile/", auth: true}, &ur); err != nil {
		return nil, err
	}

	if ur.Username == "" && ur.Email == "" {
		return nil, fmt.Errorf("%w: empty profile", ErrInvalidResponse)
	}

	return &UserInfo{Username: ur.Username, Email: ur.Email}, nil
}

// UpdateUserInfo renames the authenticated user.
func (c *Client) UpdateUserInfo(ctx context.Context, username string) (string, error) {
	return c.message(ctx, &request{
		method: http.MethodPut,
		path:   "/profile/",
		body:   map[string]string{"new_username": username},
		auth:   true,
	})
}

// DeleteAccount permanently deletes the authenticated user's account.
func (c *Client) DeleteAccount(ctx context.Context) (string, error) {
	return c.message(ctx, &request{method: http.MethodDelete, path: "/profile/", auth: true})
}

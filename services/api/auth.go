package api

import (
	"context"
	"errors"
	"net/http"

	"opdportal/models"
)

var ErrMissingToken = errors.New("login response carried no token")

func (c *Client) Register(ctx context.Context, in models.RegisterRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", in, &out, "data"); err != nil {
		return models.AuthResponse{}, err
	}
	if out.Token == "" {
		return models.AuthResponse{}, ErrMissingToken
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, in models.LoginRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", in, &out, "data"); err != nil {
		return models.AuthResponse{}, err
	}
	if out.Token == "" {
		return models.AuthResponse{}, ErrMissingToken
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the user owning the current bearer token.
func (c *Client) Me(ctx context.Context) (models.SessionUser, error) {
	var out models.SessionUser
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &out, "user", "data"); err != nil {
		return models.SessionUser{}, err
	}
	return out, nil
}

package api

import (
	"context"
	"net/http"

	"github.com/arthaus/storefront/internal/domain"
)

// Credentials is the payload returned by login and registration.
type Credentials struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// LoginInput carries the login form fields.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Login exchanges credentials for a bearer token and profile.
func (c *Client) Login(ctx context.Context, in LoginInput) (Credentials, error) {
	var out Credentials
	err := c.do(ctx, call{
		operation: "auth.login",
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      in,
		out:       &out,
	})
	return out, err
}

// Register creates an account and returns its first credentials.
func (c *Client) Register(ctx context.Context, in RegisterInput) (Credentials, error) {
	var out Credentials
	err := c.do(ctx, call{
		operation: "auth.register",
		method:    http.MethodPost,
		path:      "/auth/register",
		body:      in,
		out:       &out,
	})
	return out, err
}

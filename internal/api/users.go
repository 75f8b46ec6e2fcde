package api

import (
	"context"
	"net/http"

	"github.com/arthaus/storefront/internal/domain"
)

// UpdateProfileInput mutates the editable profile fields. Nil fields are left
// untouched by the backend.
type UpdateProfileInput struct {
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
	Country    *string `json:"country,omitempty"`
}

// ChangePasswordInput carries a password rotation request.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// CurrentUser fetches the profile bound to the bearer token. Used both for
// token validation on startup and for on-demand profile refresh.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, call{
		operation:     "users.me",
		method:        http.MethodGet,
		path:          "/users/me",
		out:           &out,
		authenticated: true,
		idempotent:    true,
	})
	return out, err
}

// UpdateProfile persists profile changes and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, in UpdateProfileInput) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, call{
		operation:     "users.update",
		method:        http.MethodPut,
		path:          "/users/me",
		body:          in,
		out:           &out,
		authenticated: true,
	})
	return out, err
}

// ChangePassword rotates the account password.
func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	return c.do(ctx, call{
		operation:     "users.change_password",
		method:        http.MethodPut,
		path:          "/users/me/password",
		body:          in,
		authenticated: true,
	})
}

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/arthaus/storefront/internal/domain"
)

// Wishlist fetches the full remote wishlist for the authenticated user.
func (c *Client) Wishlist(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := c.do(ctx, call{
		operation:     "wishlist.list",
		method:        http.MethodGet,
		path:          "/users/wishlist",
		out:           &out,
		authenticated: true,
		idempotent:    true,
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Description = domain.CleanDescription(out[i].Description)
	}
	return out, nil
}

// AddWishlistProduct marks the product as favorited on the backend.
func (c *Client) AddWishlistProduct(ctx context.Context, productID int64) error {
	return c.do(ctx, call{
		operation:     "wishlist.add",
		method:        http.MethodPost,
		path:          "/users/wishlist/" + strconv.FormatInt(productID, 10),
		authenticated: true,
	})
}

// RemoveWishlistProduct removes the product from the backend wishlist.
func (c *Client) RemoveWishlistProduct(ctx context.Context, productID int64) error {
	return c.do(ctx, call{
		operation:     "wishlist.remove",
		method:        http.MethodDelete,
		path:          "/users/wishlist/" + strconv.FormatInt(productID, 10),
		authenticated: true,
	})
}

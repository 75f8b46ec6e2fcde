package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/arthaus/storefront/internal/domain"
)

// CreateOrderInput assembles the checkout payload from the cart contents and
// the shipping form.
type CreateOrderInput struct {
	Items      []domain.OrderItem `json:"items"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	Address    string             `json:"address"`
	City       string             `json:"city"`
	PostalCode string             `json:"postalCode"`
	Country    string             `json:"country"`
}

// CreateOrder places an order. An idempotency key guards against duplicate
// submissions when the response is lost; the call itself is never retried.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	var out domain.Order
	err := c.do(ctx, call{
		operation:     "orders.create",
		method:        http.MethodPost,
		path:          "/orders",
		body:          in,
		out:           &out,
		authenticated: true,
		headers:       map[string]string{headerIdempotencyKey: ulid.Make().String()},
	})
	return out, err
}

// MyOrders lists the authenticated user's order history, newest first.
func (c *Client) MyOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := c.do(ctx, call{
		operation:     "orders.mine",
		method:        http.MethodGet,
		path:          "/orders/my-orders",
		out:           &out,
		authenticated: true,
		idempotent:    true,
	})
	return out, err
}

// Order fetches one order by id.
func (c *Client) Order(ctx context.Context, id int64) (domain.Order, error) {
	var out domain.Order
	err := c.do(ctx, call{
		operation:     "orders.get",
		method:        http.MethodGet,
		path:          "/orders/" + strconv.FormatInt(id, 10),
		out:           &out,
		authenticated: true,
		idempotent:    true,
	})
	return out, err
}

// OrderByNumber looks an order up by its public number. Deliberately
// unauthenticated so guests can track a confirmation.
func (c *Client) OrderByNumber(ctx context.Context, number string) (domain.Order, error) {
	var out domain.Order
	err := c.do(ctx, call{
		operation:  "orders.by_number",
		method:     http.MethodGet,
		path:       "/orders/number/" + url.PathEscape(strings.TrimSpace(number)),
		out:        &out,
		idempotent: true,
	})
	return out, err
}

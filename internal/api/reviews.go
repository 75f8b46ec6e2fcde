package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/arthaus/storefront/internal/domain"
)

// CreateReviewInput carries a new product review.
type CreateReviewInput struct {
	ProductID int64  `json:"productId"`
	Rating    int    `json:"rating"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
}

// CreateReview submits a review for a purchased artwork.
func (c *Client) CreateReview(ctx context.Context, in CreateReviewInput) (domain.Review, error) {
	var out domain.Review
	err := c.do(ctx, call{
		operation:     "reviews.create",
		method:        http.MethodPost,
		path:          "/reviews",
		body:          in,
		out:           &out,
		authenticated: true,
	})
	return out, err
}

// ProductReviews lists reviews for one artwork.
func (c *Client) ProductReviews(ctx context.Context, productID int64) ([]domain.Review, error) {
	var out []domain.Review
	err := c.do(ctx, call{
		operation:  "reviews.by_product",
		method:     http.MethodGet,
		path:       "/reviews/product/" + strconv.FormatInt(productID, 10),
		out:        &out,
		idempotent: true,
	})
	return out, err
}

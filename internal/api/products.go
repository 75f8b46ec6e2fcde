package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/arthaus/storefront/internal/domain"
)

// ProductQuery carries the paging and filter parameters of catalogue queries.
type ProductQuery struct {
	Page     int
	PageSize int
	Sort     string
}

// ProductPage is one page of catalogue results.
type ProductPage struct {
	Items      []domain.Product `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalItems int              `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
}

func (q ProductQuery) values() url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if sort := strings.TrimSpace(q.Sort); sort != "" {
		values.Set("sort", sort)
	}
	return values
}

func (c *Client) productPage(ctx context.Context, operation, path string, query url.Values) (ProductPage, error) {
	var out ProductPage
	err := c.do(ctx, call{
		operation:  operation,
		method:     http.MethodGet,
		path:       path,
		query:      query,
		out:        &out,
		idempotent: true,
	})
	if err != nil {
		return ProductPage{}, err
	}
	for i := range out.Items {
		out.Items[i].Description = domain.CleanDescription(out.Items[i].Description)
	}
	return out, nil
}

// Products lists the catalogue.
func (c *Client) Products(ctx context.Context, q ProductQuery) (ProductPage, error) {
	return c.productPage(ctx, "products.list", "/products", q.values())
}

// Product fetches one artwork by numeric id.
func (c *Client) Product(ctx context.Context, id int64) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, call{
		operation:  "products.get",
		method:     http.MethodGet,
		path:       "/products/" + strconv.FormatInt(id, 10),
		out:        &out,
		idempotent: true,
	})
	if err != nil {
		return domain.Product{}, err
	}
	out.Description = domain.CleanDescription(out.Description)
	return out, nil
}

// ProductBySlug fetches one artwork by URL slug.
func (c *Client) ProductBySlug(ctx context.Context, slug string) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, call{
		operation:  "products.get_by_slug",
		method:     http.MethodGet,
		path:       "/products/slug/" + url.PathEscape(strings.TrimSpace(slug)),
		out:        &out,
		idempotent: true,
	})
	if err != nil {
		return domain.Product{}, err
	}
	out.Description = domain.CleanDescription(out.Description)
	return out, nil
}

// ProductsByCategory lists artworks in a category.
func (c *Client) ProductsByCategory(ctx context.Context, category string, q ProductQuery) (ProductPage, error) {
	path := "/products/category/" + url.PathEscape(strings.TrimSpace(category))
	return c.productPage(ctx, "products.by_category", path, q.values())
}

// Featured lists curated featured artworks.
func (c *Client) Featured(ctx context.Context, q ProductQuery) (ProductPage, error) {
	return c.productPage(ctx, "products.featured", "/products/featured", q.values())
}

// Bestsellers lists bestselling artworks.
func (c *Client) Bestsellers(ctx context.Context, q ProductQuery) (ProductPage, error) {
	return c.productPage(ctx, "products.bestsellers", "/products/bestsellers", q.values())
}

// NewArrivals lists recently added artworks.
func (c *Client) NewArrivals(ctx context.Context, q ProductQuery) (ProductPage, error) {
	return c.productPage(ctx, "products.new_arrivals", "/products/new-arrivals", q.values())
}

// FlashSale lists artworks in the current flash sale.
func (c *Client) FlashSale(ctx context.Context, q ProductQuery) (ProductPage, error) {
	return c.productPage(ctx, "products.flash_sale", "/products/flash-sale", q.values())
}

// Search runs a free-text catalogue search.
func (c *Client) Search(ctx context.Context, term string, q ProductQuery) (ProductPage, error) {
	values := q.values()
	values.Set("q", strings.TrimSpace(term))
	return c.productPage(ctx, "products.search", "/products/search", values)
}

// Related lists artworks related to the given product.
func (c *Client) Related(ctx context.Context, productID int64) ([]domain.Product, error) {
	page, err := c.productPage(ctx, "products.related",
		"/products/"+strconv.FormatInt(productID, 10)+"/related", nil)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

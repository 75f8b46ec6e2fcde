package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arthaus/storefront/internal/api"
	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/mockapi"
)

func newTestBackend(t *testing.T) (*mockapi.Server, *httptest.Server) {
	t.Helper()
	backend := mockapi.New(nil)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	return backend, srv
}

func newTestClient(t *testing.T, baseURL string, opts api.Options) *api.Client {
	t.Helper()
	opts.BaseURL = baseURL
	if opts.RetryInitial == 0 {
		opts.RetryInitial = time.Millisecond
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 2 * time.Millisecond
	}
	client, err := api.New(opts)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return client
}

func TestClientRejectsInvalidBaseURL(t *testing.T) {
	if _, err := api.New(api.Options{BaseURL: "not a url"}); err == nil {
		t.Fatal("expected error for invalid base URL")
	}
	if _, err := api.New(api.Options{BaseURL: ""}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestClientLoginAndCurrentUser(t *testing.T) {
	_, srv := newTestBackend(t)

	var token atomic.Value
	client := newTestClient(t, srv.URL, api.Options{
		Token: func() (string, bool) {
			v, _ := token.Load().(string)
			return v, v != ""
		},
	})

	creds, err := client.Login(context.Background(), api.LoginInput{Email: "claire@example.fr", Password: "tournesols"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if creds.Token == "" || creds.User.Email != "claire@example.fr" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	token.Store(creds.Token)

	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user.FirstName != "Claire" {
		t.Fatalf("unexpected profile: %+v", user)
	}
}

func TestClientLoginRejectedDoesNotTripUnauthorizedHook(t *testing.T) {
	_, srv := newTestBackend(t)

	var hookFired atomic.Int32
	client := newTestClient(t, srv.URL, api.Options{
		OnUnauthorized: func() { hookFired.Add(1) },
	})

	_, err := client.Login(context.Background(), api.LoginInput{Email: "claire@example.fr", Password: "wrong"})
	apiErr, ok := api.AsError(err)
	if !ok || !apiErr.IsUnauthorized() {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if apiErr.Code != "invalid_credentials" {
		t.Fatalf("expected decoded error code, got %q", apiErr.Code)
	}
	if hookFired.Load() != 0 {
		t.Fatal("hook must not fire for anonymous calls")
	}
}

func TestClientFiresUnauthorizedHookOnRevokedToken(t *testing.T) {
	backend, srv := newTestBackend(t)

	var token atomic.Value
	var hookFired atomic.Int32
	client := newTestClient(t, srv.URL, api.Options{
		Token: func() (string, bool) {
			v, _ := token.Load().(string)
			return v, v != ""
		},
		OnUnauthorized: func() { hookFired.Add(1) },
	})

	creds, err := client.Login(context.Background(), api.LoginInput{Email: "claire@example.fr", Password: "tournesols"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	token.Store(creds.Token)
	backend.RevokeTokens()

	if _, err := client.CurrentUser(context.Background()); !api.IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	if got := hookFired.Load(); got != 1 {
		t.Fatalf("expected hook to fire once, fired %d times", got)
	}
}

func TestClientRetriesIdempotentCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"unavailable","message":"warming up"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[],"page":1,"pageSize":12,"totalItems":0,"totalPages":0}`))
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, api.Options{RetryAttempts: 3})
	if _, err := client.Products(context.Background(), api.ProductQuery{}); err != nil {
		t.Fatalf("Products: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestClientNeverRetriesMutations(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"unavailable","message":"down"}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, api.Options{RetryAttempts: 3})
	_, err := client.Login(context.Background(), api.LoginInput{Email: "a@b.fr", Password: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"product_not_found","message":"product not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, api.Options{RetryAttempts: 3})
	_, err := client.Product(context.Background(), 999)
	apiErr, ok := api.AsError(err)
	if !ok || !apiErr.IsNotFound() {
		t.Fatalf("expected 404, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestClientProductQueries(t *testing.T) {
	_, srv := newTestBackend(t)
	client := newTestClient(t, srv.URL, api.Options{})
	ctx := context.Background()

	page, err := client.Products(ctx, api.ProductQuery{Page: 1, PageSize: 3})
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(page.Items) != 3 || page.TotalItems < 3 {
		t.Fatalf("unexpected page: %d items of %d", len(page.Items), page.TotalItems)
	}

	product, err := client.Product(ctx, page.Items[0].ID)
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if product.ID != page.Items[0].ID {
		t.Fatalf("fetched wrong product: %+v", product)
	}

	bySlug, err := client.ProductBySlug(ctx, product.Slug)
	if err != nil {
		t.Fatalf("ProductBySlug: %v", err)
	}
	if bySlug.ID != product.ID {
		t.Fatalf("slug lookup mismatch: %+v", bySlug)
	}

	results, err := client.Search(ctx, product.Title, api.ProductQuery{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, p := range results.Items {
		if p.ID == product.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected search for %q to find product %d", product.Title, product.ID)
	}

	sale, err := client.FlashSale(ctx, api.ProductQuery{})
	if err != nil {
		t.Fatalf("FlashSale: %v", err)
	}
	for _, p := range sale.Items {
		if !p.FlashSale {
			t.Fatalf("non-sale product in flash sale listing: %+v", p)
		}
	}

	related, err := client.Related(ctx, product.ID)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	for _, p := range related {
		if p.ID == product.ID {
			t.Fatal("related listing must not echo the anchor product")
		}
	}
}

func TestClientWishlistRoundTrip(t *testing.T) {
	backend, srv := newTestBackend(t)

	var token atomic.Value
	client := newTestClient(t, srv.URL, api.Options{
		Token: func() (string, bool) {
			v, _ := token.Load().(string)
			return v, v != ""
		},
	})
	ctx := context.Background()

	creds, err := client.Login(ctx, api.LoginInput{Email: "claire@example.fr", Password: "tournesols"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	token.Store(creds.Token)
	backend.SeedWishlist("claire@example.fr", 1)

	if err := client.AddWishlistProduct(ctx, 2); err != nil {
		t.Fatalf("AddWishlistProduct: %v", err)
	}
	if err := client.AddWishlistProduct(ctx, 2); err != nil {
		t.Fatalf("repeated AddWishlistProduct: %v", err)
	}

	list, err := client.Wishlist(ctx)
	if err != nil {
		t.Fatalf("Wishlist: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 wishlist products, got %d", len(list))
	}

	if err := client.RemoveWishlistProduct(ctx, 1); err != nil {
		t.Fatalf("RemoveWishlistProduct: %v", err)
	}
	list, err = client.Wishlist(ctx)
	if err != nil {
		t.Fatalf("Wishlist after remove: %v", err)
	}
	if len(list) != 1 || list[0].ID != 2 {
		t.Fatalf("unexpected wishlist after remove: %+v", list)
	}
}

func TestClientOrdersAndReviews(t *testing.T) {
	_, srv := newTestBackend(t)

	var token atomic.Value
	client := newTestClient(t, srv.URL, api.Options{
		Token: func() (string, bool) {
			v, _ := token.Load().(string)
			return v, v != ""
		},
	})
	ctx := context.Background()

	creds, err := client.Login(ctx, api.LoginInput{Email: "claire@example.fr", Password: "tournesols"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	token.Store(creds.Token)

	if _, err := client.CreateOrder(ctx, api.CreateOrderInput{Name: "Claire Moreau"}); err == nil {
		t.Fatal("expected empty order to be rejected")
	}

	order, err := client.CreateOrder(ctx, api.CreateOrderInput{
		Items:      []domain.OrderItem{{ProductID: 1, Title: "Reflets sur la Seine", Quantity: 1, UnitPrice: 450}},
		Name:       "Claire Moreau",
		Email:      "claire@example.fr",
		Address:    "12 rue des Lilas",
		City:       "Lyon",
		PostalCode: "69003",
		Country:    "France",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Number == "" || order.Total != order.Subtotal+order.Shipping {
		t.Fatalf("unexpected order: %+v", order)
	}

	mine, err := client.MyOrders(ctx)
	if err != nil {
		t.Fatalf("MyOrders: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != order.ID {
		t.Fatalf("unexpected order history: %+v", mine)
	}

	tracked, err := client.OrderByNumber(ctx, order.Number)
	if err != nil {
		t.Fatalf("OrderByNumber: %v", err)
	}
	if tracked.ID != order.ID {
		t.Fatalf("tracking lookup mismatch: %+v", tracked)
	}

	review, err := client.CreateReview(ctx, api.CreateReviewInput{ProductID: 1, Rating: 5, Title: "Sublime", Body: "Les reflets sont superbes."})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if review.Author == "" || review.Rating != 5 {
		t.Fatalf("unexpected review: %+v", review)
	}

	reviews, err := client.ProductReviews(ctx, 1)
	if err != nil {
		t.Fatalf("ProductReviews: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(reviews))
	}
}

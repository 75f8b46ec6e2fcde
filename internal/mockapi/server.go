// Package mockapi is an in-memory implementation of the storefront REST API.
// It backs cmd/mockapi for local development and the api client tests.
package mockapi

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/observability"
)

type account struct {
	user     domain.User
	password string
}

// Server holds the mutable in-memory backend state.
type Server struct {
	logger *zap.Logger

	mu          sync.Mutex
	products    []domain.Product
	accounts    map[string]*account // keyed by email
	tokens      map[string]string   // token -> email
	wishlists   map[string][]int64  // email -> product ids, insertion order
	orders      []domain.Order
	ordersByKey map[string]int64 // idempotency key -> order id
	reviews     []domain.Review
	nextUserID  int64
	nextOrderID int64
	nextReview  int64
}

// New seeds a server with the gallery fixture catalogue and one test account.
func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:      logger,
		products:    fixtureProducts(),
		accounts:    map[string]*account{},
		tokens:      map[string]string{},
		wishlists:   map[string][]int64{},
		ordersByKey: map[string]int64{},
		nextUserID:  1,
		nextOrderID: 1,
		nextReview:  1,
	}
	s.seedAccount("claire@example.fr", "tournesols", "Claire", "Moreau")
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)

	r.Post("/auth/login", s.login)
	r.Post("/auth/register", s.register)

	r.Route("/users", func(r chi.Router) {
		r.Get("/me", s.requireAuth(s.currentUser))
		r.Put("/me", s.requireAuth(s.updateProfile))
		r.Put("/me/password", s.requireAuth(s.changePassword))
		r.Get("/wishlist", s.requireAuth(s.listWishlist))
		r.Post("/wishlist/{productID}", s.requireAuth(s.addWishlist))
		r.Delete("/wishlist/{productID}", s.requireAuth(s.removeWishlist))
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Get("/featured", s.listFlagged(func(p domain.Product) bool { return p.Featured }))
		r.Get("/bestsellers", s.listFlagged(func(p domain.Product) bool { return p.Bestseller }))
		r.Get("/new-arrivals", s.listFlagged(func(p domain.Product) bool { return p.NewArrival }))
		r.Get("/flash-sale", s.listFlagged(func(p domain.Product) bool { return p.FlashSale }))
		r.Get("/search", s.searchProducts)
		r.Get("/slug/{slug}", s.productBySlug)
		r.Get("/category/{category}", s.productsByCategory)
		r.Get("/{productID}", s.productByID)
		r.Get("/{productID}/related", s.relatedProducts)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.requireAuth(s.createOrder))
		r.Get("/my-orders", s.requireAuth(s.myOrders))
		r.Get("/number/{number}", s.orderByNumber)
		r.Get("/{orderID}", s.requireAuth(s.orderByID))
	})

	r.Post("/reviews", s.requireAuth(s.createReview))
	r.Get("/reviews/product/{productID}", s.productReviews)

	return r
}

// requestLogger binds a request-scoped logger carrying the request id;
// handlers retrieve it through observability.FromContext.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), logger)))
	})
}

func (s *Server) seedAccount(email, password, firstName, lastName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = &account{
		user: domain.User{
			ID:            s.nextUserID,
			Email:         email,
			FirstName:     firstName,
			LastName:      lastName,
			EmailVerified: true,
			Roles:         []string{"customer"},
		},
		password: password,
	}
	s.nextUserID++
}

// RevokeTokens invalidates every issued token. Tests use this to force 401s
// on previously authenticated sessions.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]string{}
}

// SeedWishlist replaces the stored wishlist for an account. Unknown product
// ids are ignored.
func (s *Server) SeedWishlist(email string, productIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []int64
	for _, id := range productIDs {
		if s.productByIDLocked(id) != nil {
			kept = append(kept, id)
		}
	}
	s.wishlists[email] = kept
}

func (s *Server) issueToken(email string) string {
	token := "tok_" + ulid.Make().String()
	s.tokens[token] = email
	return token
}

func (s *Server) accountForToken(r *http.Request) *account {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	if !ok {
		return nil
	}
	return s.accounts[email]
}

func (s *Server) productByIDLocked(id int64) *domain.Product {
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i]
		}
	}
	return nil
}

package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/httpx"
	"github.com/arthaus/storefront/internal/platform/observability"
)

const defaultPageSize = 12

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request, *account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct := s.accountForToken(r)
		if acct == nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		next(w, r, acct)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed body", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(in.Email))]
	if !ok || acct.password != in.Password {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
		return
	}

	token := s.issueToken(acct.user.Email)
	observability.FromContext(r.Context()).Info("login", zap.String("email", acct.user.Email))
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": acct.user})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed body", http.StatusBadRequest))
		return
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") || len(in.Password) < 8 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "email and a password of 8+ characters are required", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		httpx.WriteError(r.Context(), w, httpx.NewError("email_taken", "an account already exists for this email", http.StatusConflict))
		return
	}

	acct := &account{
		user: domain.User{
			ID:        s.nextUserID,
			Email:     email,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Roles:     []string{"customer"},
		},
		password: in.Password,
	}
	s.nextUserID++
	s.accounts[email] = acct

	token := s.issueToken(email)
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": acct.user})
}

func (s *Server) currentUser(w http.ResponseWriter, _ *http.Request, acct *account) {
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request, acct *account) {
	var in struct {
		FirstName  *string `json:"firstName"`
		LastName   *string `json:"lastName"`
		Phone      *string `json:"phone"`
		Address    *string `json:"address"`
		City       *string `json:"city"`
		PostalCode *string `json:"postalCode"`
		Country    *string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed body", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&acct.user.FirstName, in.FirstName)
	apply(&acct.user.LastName, in.LastName)
	apply(&acct.user.Phone, in.Phone)
	apply(&acct.user.Address, in.Address)
	apply(&acct.user.City, in.City)
	apply(&acct.user.PostalCode, in.PostalCode)
	apply(&acct.user.Country, in.Country)

	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, acct *account) {
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed body", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acct.password != in.CurrentPassword {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_password", "current password is incorrect", http.StatusBadRequest))
		return
	}
	if len(in.NewPassword) < 8 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "new password must be 8+ characters", http.StatusBadRequest))
		return
	}
	acct.password = in.NewPassword
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listWishlist(w http.ResponseWriter, _ *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.wishlists[acct.user.Email]))
	for _, id := range s.wishlists[acct.user.Email] {
		if p := s.productByIDLocked(id); p != nil {
			out = append(out, *p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addWishlist(w http.ResponseWriter, r *http.Request, acct *account) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id must be numeric", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productByIDLocked(id) == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}
	for _, existing := range s.wishlists[acct.user.Email] {
		if existing == id {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.wishlists[acct.user.Email] = append(s.wishlists[acct.user.Email], id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeWishlist(w http.ResponseWriter, r *http.Request, acct *account) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id must be numeric", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.wishlists[acct.user.Email]
	for i, existing := range list {
		if existing == id {
			s.wishlists[acct.user.Email] = append(list[:i], list[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func parsePaging(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func pageOf(items []domain.Product, page, pageSize int) map[string]any {
	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return map[string]any{
		"items":      items[start:end],
		"page":       page,
		"pageSize":   pageSize,
		"totalItems": total,
		"totalPages": totalPages,
	}
}

func (s *Server) filteredProducts(keep func(domain.Product) bool) []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Product
	for _, p := range s.products {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)
	writeJSON(w, http.StatusOK, pageOf(s.filteredProducts(nil), page, pageSize))
}

func (s *Server) listFlagged(keep func(domain.Product) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, pageSize := parsePaging(r)
		writeJSON(w, http.StatusOK, pageOf(s.filteredProducts(keep), page, pageSize))
	}
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	page, pageSize := parsePaging(r)
	matches := s.filteredProducts(func(p domain.Product) bool {
		if term == "" {
			return true
		}
		haystack := strings.ToLower(p.Title + " " + p.Artist + " " + p.Description)
		return strings.Contains(haystack, term)
	})
	writeJSON(w, http.StatusOK, pageOf(matches, page, pageSize))
}

func (s *Server) productsByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "category")))
	page, pageSize := parsePaging(r)
	matches := s.filteredProducts(func(p domain.Product) bool {
		return strings.EqualFold(p.Category, category)
	})
	writeJSON(w, http.StatusOK, pageOf(matches, page, pageSize))
}

func (s *Server) productByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id must be numeric", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	p := s.productByIDLocked(id)
	s.mu.Unlock()
	if p == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, *p)
}

func (s *Server) productBySlug(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Slug == slug {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
}

func (s *Server) relatedProducts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id must be numeric", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	anchor := s.productByIDLocked(id)
	s.mu.Unlock()
	if anchor == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}

	// Same category first, then same artist.
	related := s.filteredProducts(func(p domain.Product) bool {
		if p.ID == anchor.ID {
			return false
		}
		return strings.EqualFold(p.Category, anchor.Category) || strings.EqualFold(p.Artist, anchor.Artist)
	})
	writeJSON(w, http.StatusOK, pageOf(related, 1, defaultPageSize))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, acct *account) {
	var in struct {
		Items      []domain.OrderItem `json:"items"`
		Name       string             `json:"name"`
		Email      string             `json:"email"`
		Address    string             `json:"address"`
		City       string             `json:"city"`
		PostalCode string             `json:"postalCode"`
		Country    string             `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed body", http.StatusBadRequest))
		return
	}
	if len(in.Items) == 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order needs at least one item", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		if orderID, seen := s.ordersByKey[key]; seen {
			for _, existing := range s.orders {
				if existing.ID == orderID {
					writeJSON(w, http.StatusOK, existing)
					return
				}
			}
		}
	}

	var subtotal float64
	for _, item := range in.Items {
		if item.Quantity < 1 {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "item quantity must be at least 1", http.StatusBadRequest))
			return
		}
		if s.productByIDLocked(item.ProductID) == nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("product_not_found",
				fmt.Sprintf("product %d not found", item.ProductID), http.StatusNotFound))
			return
		}
		subtotal += item.UnitPrice * float64(item.Quantity)
	}

	shipping := 15.0
	order := domain.Order{
		ID:        s.nextOrderID,
		Number:    fmt.Sprintf("AG-%06d", s.nextOrderID),
		Status:    "confirmed",
		Items:     in.Items,
		Subtotal:  subtotal,
		Shipping:  shipping,
		Total:     subtotal + shipping,
		Name:      in.Name,
		Email:     firstNonEmpty(in.Email, acct.user.Email),
		Address:   in.Address,
		City:      in.City,
		Postal:    in.PostalCode,
		Country:   in.Country,
		CreatedAt: time.Now().UTC(),
	}
	s.nextOrderID++
	s.orders = append(s.orders, order)
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		s.ordersByKey[key] = order.ID
	}

	observability.FromContext(r.Context()).Info("order created",
		zap.String("number", order.Number), zap.Float64("total", order.Total))
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) myOrders(w http.ResponseWriter, _ *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, order := range s.orders {
		if order.Email == acct.user.Email {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) orderByID(w http.ResponseWriter, r *http.Request, acct *account) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id must be numeric", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.ID == id && order.Email == acct.user.Email {
			writeJSON(w, http.StatusOK, order)
			return
		}
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
}

func (s *Server) orderByNumber(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(chi.URLParam(r, "number"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.Number == number {
			writeJSON(w, http.StatusOK, order)
			return
		}
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request, acct *account) {
	var in struct {
		ProductID int64  `json:"productId"`
		Rating    int    `json:"rating"`
		Title     string `json:"title"`
		Body      string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed body", http.StatusBadRequest))
		return
	}
	if in.Rating < 1 || in.Rating > 5 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "rating must be between 1 and 5", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productByIDLocked(in.ProductID) == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}

	review := domain.Review{
		ID:        s.nextReview,
		ProductID: in.ProductID,
		Author:    acct.user.DisplayName(),
		Rating:    in.Rating,
		Title:     strings.TrimSpace(in.Title),
		Body:      strings.TrimSpace(in.Body),
		CreatedAt: time.Now().UTC(),
	}
	s.nextReview++
	s.reviews = append(s.reviews, review)
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) productReviews(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id must be numeric", http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Review, 0)
	for _, review := range s.reviews {
		if review.ProductID == id {
			out = append(out, review)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

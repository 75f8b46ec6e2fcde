package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CartLine is one purchasable configuration of an artwork in the cart. The Key
// combines product id, size, frame, and a time-based discriminator; lines with
// the same key merge by quantity, lines with distinct keys never merge.
type CartLine struct {
	Key        string  `json:"id"`
	ProductID  int64   `json:"productId,omitempty"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist,omitempty"`
	Price      string  `json:"price"`
	PriceValue float64 `json:"priceValue"`
	Image      string  `json:"image,omitempty"`
	Quantity   int     `json:"quantity"`
	Size       string  `json:"size,omitempty"`
	Frame      string  `json:"frame,omitempty"`
}

// CartKey derives the composite cart line key. The product id is always the
// first hyphen-delimited segment so that it can be recovered from legacy
// persisted lines, and the trailing timestamp keeps separately added lines
// distinct even for the same product, size, and frame.
func CartKey(productID int64, size, frame string, at time.Time) string {
	parts := []string{strconv.FormatInt(productID, 10)}
	if s := keySegment(size); s != "" {
		parts = append(parts, s)
	}
	if f := keySegment(frame); f != "" {
		parts = append(parts, f)
	}
	parts = append(parts, strconv.FormatInt(at.UnixMilli(), 10))
	return strings.Join(parts, "-")
}

// ProductIDFromCartKey recovers the numeric product id from a composite cart
// key. It reports false when the leading segment is not numeric.
func ProductIDFromCartKey(key string) (int64, bool) {
	head := key
	if idx := strings.IndexByte(key, '-'); idx >= 0 {
		head = key[:idx]
	}
	id, err := strconv.ParseInt(strings.TrimSpace(head), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func keySegment(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	var b strings.Builder
	lastHyphen := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// WishlistEntry is a favorited artwork. The product id keeps its string form
// for display; BackendID converts it for wishlist API calls.
type WishlistEntry struct {
	ProductID  string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist,omitempty"`
	Price      string  `json:"price"`
	PriceValue float64 `json:"priceValue"`
	Image      string  `json:"image,omitempty"`
	Category   string  `json:"category,omitempty"`
	InStock    *bool   `json:"inStock,omitempty"`
}

// BackendID returns the numeric product id used by wishlist API calls.
func (e WishlistEntry) BackendID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(e.ProductID), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("wishlist entry %q has no numeric product id", e.ProductID)
	}
	return id, nil
}

// RecentlyViewedEntry records one artwork in the bounded recently-viewed list.
type RecentlyViewedEntry struct {
	ProductID  string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist,omitempty"`
	Price      string  `json:"price"`
	PriceValue float64 `json:"priceValue"`
	Image      string  `json:"image,omitempty"`
}

// User is the profile attached to an authenticated session.
type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	PostalCode    string    `json:"postalCode,omitempty"`
	Country       string    `json:"country,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// DisplayName returns the name shown in greetings and review bylines.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Product is a catalogue artwork as returned by the remote API.
type Product struct {
	ID            int64     `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Image         string    `json:"image,omitempty"`
	Images        []string  `json:"images,omitempty"`
	InStock       bool      `json:"inStock"`
	Featured      bool      `json:"featured,omitempty"`
	Bestseller    bool      `json:"bestseller,omitempty"`
	NewArrival    bool      `json:"newArrival,omitempty"`
	FlashSale     bool      `json:"flashSale,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	ReviewCount   int       `json:"reviewCount,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// WishlistEntryFromProduct builds the locally persisted wishlist form of a
// catalogue product.
func WishlistEntryFromProduct(p Product) WishlistEntry {
	inStock := p.InStock
	return WishlistEntry{
		ProductID:  strconv.FormatInt(p.ID, 10),
		Title:      p.Title,
		Artist:     p.Artist,
		Price:      FormatPrice(p.Price),
		PriceValue: p.Price,
		Image:      p.Image,
		Category:   p.Category,
		InStock:    &inStock,
	}
}

// OrderItem is one purchased line inside an order.
type OrderItem struct {
	ProductID int64   `json:"productId"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Size      string  `json:"size,omitempty"`
	Frame     string  `json:"frame,omitempty"`
}

// Order is a placed order as returned by the remote API.
type Order struct {
	ID        int64       `json:"id"`
	Number    string      `json:"number"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
	Subtotal  float64     `json:"subtotal"`
	Shipping  float64     `json:"shipping"`
	Total     float64     `json:"total"`
	Name      string      `json:"name,omitempty"`
	Email     string      `json:"email,omitempty"`
	Address   string      `json:"address,omitempty"`
	City      string      `json:"city,omitempty"`
	Postal    string      `json:"postalCode,omitempty"`
	Country   string      `json:"country,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
}

// Review is a product review.
type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

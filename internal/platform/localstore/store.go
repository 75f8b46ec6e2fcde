// Package localstore provides the origin-scoped string key-value store that
// keeps cart, wishlist, and session state durable across restarts.
package localstore

// Persisted collection keys shared by the state managers.
const (
	KeyCart           = "cart"
	KeyWishlist       = "wishlist"
	KeyRecentlyViewed = "recently_viewed"
	KeyToken          = "auth_token"
	KeyUser           = "auth_user"
)

// Store is a synchronous string key-value store. Get never fails: a missing
// key reads as absent. Set may fail (quota, filesystem); callers must treat a
// failed write as non-fatal and continue with in-memory state.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string)
}

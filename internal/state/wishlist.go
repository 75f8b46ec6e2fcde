package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/localstore"
)

// SyncState is the wishlist's position in its reconciliation state machine.
type SyncState int

const (
	// Anonymous routes all reads and writes to the local store only.
	Anonymous SyncState = iota
	// SyncingOnLogin means the login-time backend fetch is in flight.
	SyncingOnLogin
	// AuthenticatedSync gates every mutation on the backend.
	AuthenticatedSync
)

var (
	errWishlistStoreRequired  = errors.New("wishlist: local store is required")
	errWishlistClientRequired = errors.New("wishlist: api client is required")

	// ErrWishlistRemoteRejected wraps a backend refusal of a gated mutation.
	// The local collection is untouched when this is returned.
	ErrWishlistRemoteRejected = errors.New("wishlist: remote update rejected")
)

// WishlistClient is the slice of the remote API the wishlist manager uses.
type WishlistClient interface {
	Wishlist(ctx context.Context) ([]domain.Product, error)
	AddWishlistProduct(ctx context.Context, productID int64) error
	RemoveWishlistProduct(ctx context.Context, productID int64) error
}

// WishlistDeps wires the wishlist manager's dependencies.
type WishlistDeps struct {
	Store  localstore.Store
	Client WishlistClient
	Logger *zap.Logger
}

// Wishlist owns the set of favorited artworks across anonymous and
// authenticated sessions. Reconciliation policy on login: the backend list
// replaces the local one wholesale on success (favorites collected while
// anonymous are deliberately dropped, not merged); on failure the last
// persisted local list stays authoritative. Every change is written through
// to the local store so an unexpected logout degrades to the last confirmed
// state.
type Wishlist struct {
	notifier

	mu      sync.Mutex
	store   localstore.Store
	client  WishlistClient
	logger  *zap.Logger
	state   SyncState
	entries []domain.WishlistEntry

	// pending serialises mutations per product id so two rapid toggles of
	// the same artwork cannot interleave their remote calls.
	pendingMu sync.Mutex
	pending   map[string]*sync.Mutex
}

// NewWishlist loads the persisted wishlist and starts in the Anonymous state.
func NewWishlist(deps WishlistDeps) (*Wishlist, error) {
	if deps.Store == nil {
		return nil, errWishlistStoreRequired
	}
	if deps.Client == nil {
		return nil, errWishlistClientRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Wishlist{
		store:   deps.Store,
		client:  deps.Client,
		logger:  logger,
		pending: map[string]*sync.Mutex{},
	}
	w.mu.Lock()
	w.entries = w.loadLocked()
	w.mu.Unlock()
	return w, nil
}

// HandleAuthChange drives the state machine from session transitions. Wire
// it to the session store's subscription.
func (w *Wishlist) HandleAuthChange(ctx context.Context, authenticated bool) error {
	if !authenticated {
		w.mu.Lock()
		w.state = Anonymous
		w.mu.Unlock()
		return nil
	}

	w.mu.Lock()
	w.state = SyncingOnLogin
	w.mu.Unlock()

	products, err := w.client.Wishlist(ctx)
	if err != nil {
		// Backend unreachable: the last persisted local list stays in place
		// and the user keeps a workable, possibly stale wishlist.
		w.mu.Lock()
		w.state = AuthenticatedSync
		w.entries = w.loadLocked()
		w.mu.Unlock()

		w.logger.Warn("wishlist sync failed, serving cached list", zap.Error(err))
		w.publish(Event{Kind: EventWishlistSynced})
		return err
	}

	entries := make([]domain.WishlistEntry, 0, len(products))
	for _, p := range products {
		entries = append(entries, domain.WishlistEntryFromProduct(p))
	}

	w.mu.Lock()
	w.state = AuthenticatedSync
	w.entries = entries
	w.persistLocked()
	w.mu.Unlock()

	w.publish(Event{Kind: EventWishlistSynced})
	return nil
}

// Add favorites an artwork. While authenticated the remote call gates the
// local mutation: a backend failure leaves the collection unchanged and is
// surfaced to the caller. The local add is idempotent.
func (w *Wishlist) Add(ctx context.Context, entry domain.WishlistEntry) error {
	unlock := w.lockKey(entry.ProductID)
	defer unlock()
	return w.add(ctx, entry)
}

// add requires the caller to hold the product's mutation lock.
func (w *Wishlist) add(ctx context.Context, entry domain.WishlistEntry) error {
	if w.State() == AuthenticatedSync {
		id, err := entry.BackendID()
		if err != nil {
			return err
		}
		if err := w.client.AddWishlistProduct(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrWishlistRemoteRejected, err)
		}
	}

	w.mu.Lock()
	if w.indexOfLocked(entry.ProductID) >= 0 {
		w.mu.Unlock()
		return nil
	}
	w.entries = append(w.entries, entry)
	w.persistLocked()
	w.mu.Unlock()

	w.publish(Event{Kind: EventWishlistChanged, Key: entry.ProductID})
	return nil
}

// Remove unfavorites an artwork. Removal of an entry that is not present
// locally is a safe no-op once the backend confirmed.
func (w *Wishlist) Remove(ctx context.Context, productID string) error {
	unlock := w.lockKey(productID)
	defer unlock()
	return w.remove(ctx, productID)
}

// remove requires the caller to hold the product's mutation lock.
func (w *Wishlist) remove(ctx context.Context, productID string) error {
	if w.State() == AuthenticatedSync {
		id, err := domain.WishlistEntry{ProductID: productID}.BackendID()
		if err != nil {
			return err
		}
		if err := w.client.RemoveWishlistProduct(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrWishlistRemoteRejected, err)
		}
	}

	w.mu.Lock()
	idx := w.indexOfLocked(productID)
	if idx >= 0 {
		w.entries = append(w.entries[:idx], w.entries[idx+1:]...)
	}
	w.persistLocked()
	w.mu.Unlock()

	w.publish(Event{Kind: EventWishlistChanged, Key: productID})
	return nil
}

// Toggle adds or removes based on current membership. The check and the
// dispatch run under the product's mutation lock, so two rapid toggles of the
// same artwork resolve in sequence: the second sees the first's outcome.
func (w *Wishlist) Toggle(ctx context.Context, entry domain.WishlistEntry) error {
	unlock := w.lockKey(entry.ProductID)
	defer unlock()

	if w.Contains(entry.ProductID) {
		return w.remove(ctx, entry.ProductID)
	}
	return w.add(ctx, entry)
}

// Contains reports whether the artwork is currently favorited.
func (w *Wishlist) Contains(productID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.indexOfLocked(productID) >= 0
}

// Entries returns a snapshot of the wishlist.
func (w *Wishlist) Entries() []domain.WishlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.WishlistEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// State reports the current reconciliation state.
func (w *Wishlist) State() SyncState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe registers a listener for wishlist events.
func (w *Wishlist) Subscribe(fn func(Event)) func() {
	return w.subscribe(fn)
}

// lockKey serialises mutating calls per product id.
func (w *Wishlist) lockKey(productID string) func() {
	w.pendingMu.Lock()
	m, ok := w.pending[productID]
	if !ok {
		m = &sync.Mutex{}
		w.pending[productID] = m
	}
	w.pendingMu.Unlock()

	m.Lock()
	return m.Unlock
}

func (w *Wishlist) indexOfLocked(productID string) int {
	for i, entry := range w.entries {
		if entry.ProductID == productID {
			return i
		}
	}
	return -1
}

func (w *Wishlist) loadLocked() []domain.WishlistEntry {
	raw, ok := w.store.Get(localstore.KeyWishlist)
	if !ok {
		return nil
	}
	var entries []domain.WishlistEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		w.logger.Warn("discarding corrupt persisted wishlist", zap.Error(err))
		w.store.Remove(localstore.KeyWishlist)
		return nil
	}
	return entries
}

func (w *Wishlist) persistLocked() {
	encoded, err := json.Marshal(w.entries)
	if err != nil {
		w.logger.Warn("wishlist serialisation failed", zap.Error(err))
		return
	}
	if err := w.store.Set(localstore.KeyWishlist, string(encoded)); err != nil {
		w.logger.Warn("wishlist persistence failed", zap.Error(err))
	}
}

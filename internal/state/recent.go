package state

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/localstore"
)

// maxRecentlyViewed bounds the browsing-history list.
const maxRecentlyViewed = 8

var errRecentStoreRequired = errors.New("recently viewed: local store is required")

// RecentlyViewedDeps wires the tracker's dependencies.
type RecentlyViewedDeps struct {
	Store  localstore.Store
	Logger *zap.Logger
}

// RecentlyViewed keeps a bounded, most-recent-first list of artworks the
// visitor opened. It is purely local and never talks to the backend.
type RecentlyViewed struct {
	notifier

	mu      sync.Mutex
	store   localstore.Store
	logger  *zap.Logger
	entries []domain.RecentlyViewedEntry
}

// NewRecentlyViewed loads the persisted history.
func NewRecentlyViewed(deps RecentlyViewedDeps) (*RecentlyViewed, error) {
	if deps.Store == nil {
		return nil, errRecentStoreRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &RecentlyViewed{store: deps.Store, logger: logger}
	r.mu.Lock()
	r.entries = r.loadLocked()
	r.mu.Unlock()
	return r, nil
}

// Record notes a product view. Revisiting an artwork moves it to the front
// instead of duplicating it; the list never exceeds its bound.
func (r *RecentlyViewed) Record(entry domain.RecentlyViewedEntry) {
	r.mu.Lock()
	filtered := make([]domain.RecentlyViewedEntry, 0, len(r.entries)+1)
	filtered = append(filtered, entry)
	for _, existing := range r.entries {
		if existing.ProductID == entry.ProductID {
			continue
		}
		filtered = append(filtered, existing)
	}
	if len(filtered) > maxRecentlyViewed {
		filtered = filtered[:maxRecentlyViewed]
	}
	r.entries = filtered
	r.persistLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventRecentlyViewedChanged, Key: entry.ProductID})
}

// Entries returns the history, most recent first.
func (r *RecentlyViewed) Entries() []domain.RecentlyViewedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RecentlyViewedEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear empties the history.
func (r *RecentlyViewed) Clear() {
	r.mu.Lock()
	r.entries = nil
	r.persistLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventRecentlyViewedChanged})
}

// Subscribe registers a listener for history events.
func (r *RecentlyViewed) Subscribe(fn func(Event)) func() {
	return r.subscribe(fn)
}

func (r *RecentlyViewed) loadLocked() []domain.RecentlyViewedEntry {
	raw, ok := r.store.Get(localstore.KeyRecentlyViewed)
	if !ok {
		return nil
	}
	var entries []domain.RecentlyViewedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.logger.Warn("discarding corrupt persisted browsing history", zap.Error(err))
		r.store.Remove(localstore.KeyRecentlyViewed)
		return nil
	}
	if len(entries) > maxRecentlyViewed {
		entries = entries[:maxRecentlyViewed]
	}
	return entries
}

func (r *RecentlyViewed) persistLocked() {
	encoded, err := json.Marshal(r.entries)
	if err != nil {
		r.logger.Warn("browsing history serialisation failed", zap.Error(err))
		return
	}
	if err := r.store.Set(localstore.KeyRecentlyViewed, string(encoded)); err != nil {
		r.logger.Warn("browsing history persistence failed", zap.Error(err))
	}
}

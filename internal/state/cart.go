package state

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/localstore"
)

var errCartStoreRequired = errors.New("cart: local store is required")

// CartDeps wires the cart manager's dependencies.
type CartDeps struct {
	Store  localstore.Store
	Logger *zap.Logger
	Clock  func() time.Time
}

// Cart owns the shopping cart. It is purely local and optimistic: products
// are never validated against the backend at add time. Every mutation
// re-persists the whole collection.
type Cart struct {
	notifier

	mu     sync.Mutex
	store  localstore.Store
	logger *zap.Logger
	now    func() time.Time
	lines  []domain.CartLine
}

// NewCart loads the persisted cart, discarding a corrupt blob, and runs the
// one-time product-id migration for legacy lines.
func NewCart(deps CartDeps) (*Cart, error) {
	if deps.Store == nil {
		return nil, errCartStoreRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	c := &Cart{
		store:  deps.Store,
		logger: logger,
		now:    now,
	}
	c.load()
	return c, nil
}

func (c *Cart) load() {
	raw, ok := c.store.Get(localstore.KeyCart)
	if !ok {
		return
	}

	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		// Corrupt blob: recover by starting from an empty cart. The parse
		// error never reaches the UI.
		c.logger.Warn("discarding corrupt persisted cart", zap.Error(err))
		c.store.Remove(localstore.KeyCart)
		return
	}

	migrated := false
	for i := range lines {
		if lines[i].ProductID != 0 {
			continue
		}
		if id, ok := domain.ProductIDFromCartKey(lines[i].Key); ok {
			lines[i].ProductID = id
			migrated = true
		}
	}

	c.lines = lines
	if migrated {
		c.persistLocked()
	}
}

// Add merges the line into an existing one with the same composite key, or
// appends it with quantity 1. Lines added through separate calls carry fresh
// time-based keys and therefore never merge.
func (c *Cart) Add(line domain.CartLine) domain.CartLine {
	c.mu.Lock()

	if line.Key == "" {
		line.Key = domain.CartKey(line.ProductID, line.Size, line.Frame, c.now())
	}
	if line.ProductID == 0 {
		if id, ok := domain.ProductIDFromCartKey(line.Key); ok {
			line.ProductID = id
		}
	}

	kind := EventCartLineAdded
	idx := c.indexOf(line.Key)
	if idx >= 0 {
		c.lines[idx].Quantity++
		line = c.lines[idx]
		kind = EventCartLineUpdated
	} else {
		line.Quantity = 1
		c.lines = append(c.lines, line)
	}
	c.persistLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: kind, Key: line.Key})
	return line
}

// Remove deletes the line with the given key. Removing an unknown key is a
// silent no-op.
func (c *Cart) Remove(key string) {
	c.mu.Lock()
	idx := c.indexOf(key)
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	c.persistLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventCartLineRemoved, Key: key})
}

// UpdateQuantity sets the line's quantity. A requested quantity below one
// removes the line instead.
func (c *Cart) UpdateQuantity(key string, quantity int) {
	if quantity < 1 {
		c.Remove(key)
		return
	}

	c.mu.Lock()
	idx := c.indexOf(key)
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.lines[idx].Quantity = quantity
	c.persistLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventCartLineUpdated, Key: key})
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.persistLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventCartCleared})
}

// Lines returns a snapshot of the cart contents in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total sums numeric unit price times quantity over all lines.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, line := range c.lines {
		total += line.PriceValue * float64(line.Quantity)
	}
	return total
}

// Count sums the quantities over all lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

// Subscribe registers a listener for cart events and returns its cancel func.
func (c *Cart) Subscribe(fn func(Event)) func() {
	return c.subscribe(fn)
}

func (c *Cart) indexOf(key string) int {
	for i, line := range c.lines {
		if line.Key == key {
			return i
		}
	}
	return -1
}

// persistLocked re-serialises the whole collection. Write failures are
// non-fatal: the in-memory cart keeps working for this session.
func (c *Cart) persistLocked() {
	encoded, err := json.Marshal(c.lines)
	if err != nil {
		c.logger.Warn("cart serialisation failed", zap.Error(err))
		return
	}
	if err := c.store.Set(localstore.KeyCart, string(encoded)); err != nil {
		c.logger.Warn("cart persistence failed", zap.Error(err))
	}
}

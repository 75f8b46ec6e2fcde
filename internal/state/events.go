// Package state owns the client-side storefront state: the session/identity
// store, the cart, the wishlist, and the recently-viewed tracker. Managers
// mutate in-memory collections synchronously, write every change through to
// the local store, and notify subscribers.
package state

import "sync"

// EventKind enumerates the notifications emitted to subscribers.
type EventKind string

const (
	EventCartLineAdded   EventKind = "cart.line_added"
	EventCartLineUpdated EventKind = "cart.line_updated"
	EventCartLineRemoved EventKind = "cart.line_removed"
	EventCartCleared     EventKind = "cart.cleared"

	EventWishlistChanged EventKind = "wishlist.changed"
	EventWishlistSynced  EventKind = "wishlist.synced"

	EventRecentlyViewedChanged EventKind = "recently_viewed.changed"

	EventSessionChanged EventKind = "session.changed"
)

// Event is one state-change notification. Key identifies the affected cart
// line or product where applicable.
type Event struct {
	Kind EventKind
	Key  string
}

// notifier fans events out to subscribers. Callbacks run synchronously on the
// mutating goroutine, outside the owning manager's lock.
type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)
}

func (n *notifier) subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = map[int]func(Event){}
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

func (n *notifier) publish(event Event) {
	n.mu.Lock()
	callbacks := make([]func(Event), 0, len(n.listeners))
	for _, fn := range n.listeners {
		callbacks = append(callbacks, fn)
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}

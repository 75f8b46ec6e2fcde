package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/localstore"
)

func newTestCart(t *testing.T, store localstore.Store, clock func() time.Time) *Cart {
	t.Helper()
	cart, err := NewCart(CartDeps{Store: store, Clock: clock})
	if err != nil {
		t.Fatalf("NewCart: %v", err)
	}
	return cart
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestCartAddSameConfigurationMerges(t *testing.T) {
	store := localstore.NewMemoryStore()
	at := time.UnixMilli(1700000000000)
	cart := newTestCart(t, store, fixedClock(at))

	line := domain.CartLine{ProductID: 19, Title: "Reflets sur la Seine", PriceValue: 450, Size: "moyen", Frame: "cadre noir"}
	first := cart.Add(line)
	second := cart.Add(line)

	if first.Key != second.Key {
		t.Fatalf("expected identical keys, got %q and %q", first.Key, second.Key)
	}
	lines := cart.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", lines[0].Quantity)
	}
}

func TestCartAddSeparateCallsNeverMerge(t *testing.T) {
	store := localstore.NewMemoryStore()
	at := time.UnixMilli(1700000000000)
	cart := newTestCart(t, store, func() time.Time {
		at = at.Add(time.Millisecond)
		return at
	})

	line := domain.CartLine{ProductID: 19, Title: "Reflets sur la Seine", PriceValue: 450, Size: "moyen", Frame: "cadre noir"}
	cart.Add(line)
	cart.Add(line)

	lines := cart.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 distinct lines, got %d", len(lines))
	}
	if lines[0].Key == lines[1].Key {
		t.Fatalf("expected distinct keys, both were %q", lines[0].Key)
	}
	for _, l := range lines {
		if l.Quantity != 1 {
			t.Fatalf("expected quantity 1, got %d", l.Quantity)
		}
	}
}

func TestCartUpdateQuantityBelowOneRemoves(t *testing.T) {
	store := localstore.NewMemoryStore()
	cart := newTestCart(t, store, fixedClock(time.UnixMilli(1700000000000)))

	line := cart.Add(domain.CartLine{ProductID: 4, Title: "Composition 19", PriceValue: 380})
	cart.UpdateQuantity(line.Key, 0)

	if got := len(cart.Lines()); got != 0 {
		t.Fatalf("expected empty cart, got %d lines", got)
	}
	if cart.Count() != 0 {
		t.Fatalf("expected count 0, got %d", cart.Count())
	}
}

func TestCartTotalsAndCount(t *testing.T) {
	store := localstore.NewMemoryStore()
	cart := newTestCart(t, store, fixedClock(time.UnixMilli(1700000000000)))

	a := cart.Add(domain.CartLine{ProductID: 1, Title: "Reflets sur la Seine", PriceValue: 120.5})
	cart.UpdateQuantity(a.Key, 2)
	cart.Add(domain.CartLine{ProductID: 2, Title: "Nu bleu assis", PriceValue: 80, Size: "grand"})

	if got, want := cart.Total(), 321.0; got != want {
		t.Fatalf("Total() = %v, want %v", got, want)
	}
	if got := cart.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}
}

func TestCartPersistsAcrossRestarts(t *testing.T) {
	store := localstore.NewMemoryStore()
	cart := newTestCart(t, store, fixedClock(time.UnixMilli(1700000000000)))

	added := cart.Add(domain.CartLine{ProductID: 6, Title: "Marée basse à Cancale", PriceValue: 520, Size: "grand", Frame: "chêne"})
	cart.Add(added)

	reloaded := newTestCart(t, store, fixedClock(time.UnixMilli(1700000099000)))
	lines := reloaded.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 restored line, got %d", len(lines))
	}
	if lines[0].Key != added.Key || lines[0].Quantity != 2 {
		t.Fatalf("restored line mismatch: %+v", lines[0])
	}
}

func TestCartMigratesLegacyLines(t *testing.T) {
	store := localstore.NewMemoryStore()
	legacy := []domain.CartLine{{
		Key:        "19-moyen-cadre-noir-1700000000000",
		Title:      "Reflets sur la Seine",
		PriceValue: 450,
		Quantity:   2,
	}}
	encoded, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := store.Set(localstore.KeyCart, string(encoded)); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cart := newTestCart(t, store, fixedClock(time.UnixMilli(1700000099000)))
	lines := cart.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].ProductID != 19 {
		t.Fatalf("expected migrated product id 19, got %d", lines[0].ProductID)
	}

	raw, ok := store.Get(localstore.KeyCart)
	if !ok {
		t.Fatal("expected migrated cart to be re-persisted")
	}
	var persisted []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("unmarshal persisted cart: %v", err)
	}
	if persisted[0].ProductID != 19 {
		t.Fatalf("persisted line missing migrated product id: %+v", persisted[0])
	}
}

func TestCartDiscardsCorruptBlob(t *testing.T) {
	store := localstore.NewMemoryStore()
	if err := store.Set(localstore.KeyCart, "{not json"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cart := newTestCart(t, store, fixedClock(time.UnixMilli(1700000000000)))
	if got := len(cart.Lines()); got != 0 {
		t.Fatalf("expected empty cart, got %d lines", got)
	}
	if _, ok := store.Get(localstore.KeyCart); ok {
		t.Fatal("expected corrupt blob to be removed")
	}
}

func TestCartSurvivesWriteFailures(t *testing.T) {
	store := localstore.NewMemoryStore()
	store.FailWrites = true
	cart := newTestCart(t, store, fixedClock(time.UnixMilli(1700000000000)))

	line := cart.Add(domain.CartLine{ProductID: 3, Title: "Verger en février", PriceValue: 290})
	if line.Quantity != 1 {
		t.Fatalf("expected in-memory add despite write failure, got %+v", line)
	}
	if got := cart.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestCartEvents(t *testing.T) {
	store := localstore.NewMemoryStore()
	cart := newTestCart(t, store, fixedClock(time.UnixMilli(1700000000000)))

	var events []Event
	cancel := cart.Subscribe(func(e Event) { events = append(events, e) })
	defer cancel()

	line := cart.Add(domain.CartLine{ProductID: 8, Title: "Étude de mains", PriceValue: 150})
	cart.Add(line)
	cart.Remove(line.Key)
	cart.Clear()
	cart.Remove("missing")

	want := []EventKind{EventCartLineAdded, EventCartLineUpdated, EventCartLineRemoved, EventCartCleared}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(events), events)
	}
	for i, kind := range want {
		if events[i].Kind != kind {
			t.Fatalf("event %d = %s, want %s", i, events[i].Kind, kind)
		}
	}
}

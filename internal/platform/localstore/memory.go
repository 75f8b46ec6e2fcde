package localstore

import "sync"

// MemoryStore is an in-process Store used by tests and by callers that opt
// out of durability.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string

	// FailWrites makes every Set return ErrWriteRejected, emulating a store
	// that ran out of quota.
	FailWrites bool
}

// ErrWriteRejected is returned by a MemoryStore configured to refuse writes.
var ErrWriteRejected = errString("localstore: write rejected")

type errString string

func (e errString) Error() string { return string(e) }

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

// Get reads the value for key.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Set stores the value for key.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrWriteRejected
	}
	s.values[key] = value
	return nil
}

// Remove deletes the key.
func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

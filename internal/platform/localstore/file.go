package localstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// FileStore persists each key as a file under a state directory. Writes go
// through an atomic replace so a crash mid-write never leaves a corrupt value.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory when absent and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("localstore: state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("localstore: create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get reads the value for key, reporting false when the key was never written.
func (s *FileStore) Get(key string) (string, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set writes the value for key atomically.
func (s *FileStore) Set(key, value string) error {
	if err := atomic.WriteFile(s.path(key), bytes.NewReader([]byte(value))); err != nil {
		return fmt.Errorf("localstore: write %q: %w", key, err)
	}
	return nil
}

// Remove deletes the key. Removing an absent key is a no-op.
func (s *FileStore) Remove(key string) {
	_ = os.Remove(s.path(key))
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(key)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

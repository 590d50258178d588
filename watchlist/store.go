// Package watchlist defines the durable set of watched streamer names and the
// storage error contract shared by every backend.
//
// A Store is scoped to a single provider. Names are unique and compared
// case-sensitively exactly as stored. Backends never report a storage fault as
// an empty list or a false result: failures surface as *StorageError so a
// caller can tell "not watched" apart from "storage unavailable".
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Store is the durable key-set of watched names for one provider.
type Store interface {
	// Add inserts name if absent and reports whether it was newly inserted.
	Add(ctx context.Context, name string) (bool, error)
	// Remove deletes name if present and reports whether it was deleted.
	Remove(ctx context.Context, name string) (bool, error)
	// List returns all watched names in insertion order.
	List(ctx context.Context) ([]string, error)
}

// ErrStorage matches any *StorageError via errors.Is.
var ErrStorage = errors.New("watchlist storage unavailable")

// StorageError reports a fault in the persistence layer behind a Store.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("watchlist %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for every StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// WrapStorage wraps a backend error; nil stays nil.
func WrapStorage(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Backend: backend, Op: op, Err: err}
}

// MemoryStore is a process-local Store. It is used by tests and by STORE=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	names []string
	index map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore seeded with names (duplicates ignored).
func NewMemoryStore(names ...string) *MemoryStore {
	s := &MemoryStore{index: make(map[string]struct{})}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *MemoryStore) add(name string) bool {
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

func (s *MemoryStore) Add(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, WrapStorage("memory", "add", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(name), nil
}

func (s *MemoryStore) Remove(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, WrapStorage("memory", "remove", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; !ok {
		return false, nil
	}
	delete(s.index, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapStorage("memory", "list", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out, nil
}

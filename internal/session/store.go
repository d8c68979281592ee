// Package session provides the persistent key/value store that holds the
// signed-in user's identifiers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faishion/tryon-client/internal/events"
)

// Well-known keys.
const (
	KeyAccessToken = "accessToken"
	KeyUserID      = "userId"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("session key not found")

// ErrEmptyKey is returned for an empty key.
var ErrEmptyKey = errors.New("session key is empty")

// Store is a persistent string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backends accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

// MemoryStore is an in-process Store, used in tests and as a fallback.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// observed publishes a SessionEvent after every successful write.
type observed struct {
	Store
	bus *events.EventBus
}

// WithEvents wraps s so that Set and Delete publish events.SessionEvent on bus.
func WithEvents(s Store, bus *events.EventBus) Store {
	if bus == nil {
		return s
	}
	return &observed{Store: s, bus: bus}
}

func (o *observed) Set(ctx context.Context, key, value string) error {
	if err := o.Store.Set(ctx, key, value); err != nil {
		return err
	}
	o.publish(key, false)
	return nil
}

func (o *observed) Delete(ctx context.Context, key string) error {
	if err := o.Store.Delete(ctx, key); err != nil {
		return err
	}
	o.publish(key, true)
	return nil
}

func (o *observed) publish(key string, removed bool) {
	o.bus.Publish(&events.SessionEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventSessionChanged, Time: time.Now()},
		Key:       key,
		Removed:   removed,
	})
}

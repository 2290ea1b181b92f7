package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/clock"
	"github.com/dmitrijs2005/docdelivery/internal/common"
)

type memoryObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// MemoryStore is an in-process BlobStore used for development and tests.
// Handles have the form memory://<path>?expires=<unix>.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	writes  int
	clock   clock.Clock
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used to stamp handle expiry.
func WithMemoryClock(c clock.Clock) MemoryOption {
	return func(m *MemoryStore) { m.clock = c }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{objects: make(map[string]memoryObject), clock: clock.Real()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *MemoryStore) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, common.ErrNotFound)
	}
	return slices.Clone(obj.data), nil
}

func (m *MemoryStore) Write(ctx context.Context, path string, data []byte, contentType string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = memoryObject{data: slices.Clone(data), contentType: contentType, metadata: md}
	m.writes++
	return nil
}

func (m *MemoryStore) MintReadHandle(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	_, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("handle %s: %w", path, common.ErrNotFound)
	}
	return fmt.Sprintf("memory://%s?expires=%d", path, m.clock.Now().Add(ttl).Unix()), nil
}

// Delete removes an object.
func (m *MemoryStore) Delete(path string) {
	m.mu.Lock()
	delete(m.objects, path)
	m.mu.Unlock()
}

// Writes returns how many Write calls succeeded.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Object returns the stored content type and metadata of path.
func (m *MemoryStore) Object(path string) (contentType string, metadata map[string]string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	return obj.contentType, obj.metadata, ok
}

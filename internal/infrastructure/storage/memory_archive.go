package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryArchive keeps receipts in process memory and hands out links that
// only look signed. Used when object storage is disabled.
type MemoryArchive struct {
	// BaseURL prefixes generated links
	BaseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryArchive creates an empty MemoryArchive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		BaseURL: "https://storage.example.com",
		objects: make(map[string]Object),
	}
}

// Put keeps a copy of obj
func (m *MemoryArchive) Put(_ context.Context, obj Object) error {
	if obj.Key == "" {
		return ErrKeyRequired
	}
	obj.Data = append([]byte(nil), obj.Data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Key] = obj
	return nil
}

// SignedLink returns a link to key; the object must exist
func (m *MemoryArchive) SignedLink(_ context.Context, key, fileName string, ttl time.Duration) (Link, error) {
	if key == "" {
		return Link{}, ErrKeyRequired
	}
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return Link{}, fmt.Errorf("object not found: %s", key)
	}
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}

	expiresAt := time.Now().Add(ttl)
	q := url.Values{}
	q.Set("expires", expiresAt.UTC().Format(time.RFC3339))
	if fileName != "" {
		q.Set("filename", fileName)
	}
	return Link{URL: m.BaseURL + "/download/" + key + "?" + q.Encode(), ExpiresAt: expiresAt}, nil
}

// Remove deletes key
func (m *MemoryArchive) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Get returns the archived object under key
func (m *MemoryArchive) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len reports how many objects are archived
func (m *MemoryArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

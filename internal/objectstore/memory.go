package objectstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Memory is an in-process Storage. It counts operations so tests can assert
// what the pipeline fetched.
type Memory struct {
	mu        sync.RWMutex
	baseURL   string
	objects   map[string][]byte
	uploads   map[string]int
	downloads map[string]int
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty in-memory Storage whose URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &Memory{
		baseURL:   baseURL,
		objects:   map[string][]byte{},
		uploads:   map[string]int{},
		downloads: map[string]int{},
	}
}

// Upload implements Storage.
func (m *Memory) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = slices.Clone(data)
	m.uploads[key]++
	return PublicURL(m.baseURL, key), nil
}

// Download implements Storage.
func (m *Memory) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, ErrObjectNotFound)
	}
	m.downloads[key]++
	return slices.Clone(data), nil
}

// Keys lists stored keys in lexical order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Uploads returns how many times key was uploaded.
func (m *Memory) Uploads(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads[key]
}

// Downloads returns how many times key was downloaded.
func (m *Memory) Downloads(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloads[key]
}

// Delete removes key. Tests use it to simulate an expired snapshot.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
}

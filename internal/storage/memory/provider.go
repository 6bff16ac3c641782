package memory

import (
	"context"
	"sync"

	"github.com/reciperag/session-cache/internal/storage"
)

// Provider is an in-process store. It is the default ephemeral backend (its
// contents vanish with the process, which is the point) and doubles as the
// test backend for the persistent class.
type Provider struct {
	mu       sync.RWMutex
	class    storage.Class
	maxBytes int
	entries  map[string]string
}

// New creates a memory provider of the given class. maxBytes caps the total
// size of stored keys and values; zero means unbounded. Writes past the cap
// fail with storage.ErrQuotaExceeded.
func New(class storage.Class, maxBytes int) *Provider {
	return &Provider{
		class:    class,
		maxBytes: maxBytes,
		entries:  make(map[string]string),
	}
}

func (p *Provider) Get(_ context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.entries[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (p *Provider) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxBytes > 0 {
		// Current usage plus the incoming entry. An existing value
		// under the same key counts until something evicts it.
		total := len(key) + len(value)
		for k, v := range p.entries {
			total += len(k) + len(v)
		}
		if total > p.maxBytes {
			return storage.ErrQuotaExceeded
		}
	}

	p.entries[key] = value
	return nil
}

func (p *Provider) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.entries, key)
	return nil
}

func (p *Provider) Class() storage.Class {
	return p.class
}

// Flush drops every entry and reports how many were removed.
func (p *Provider) Flush(_ context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := int64(len(p.entries))
	p.entries = make(map[string]string)
	return n, nil
}

// Len reports the number of stored entries.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

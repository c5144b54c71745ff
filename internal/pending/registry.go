// Package pending holds delete requests awaiting confirmation, one per
// conversation thread. Entries live in process memory only.
package pending

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAlreadyPending is returned by Open when the key already has a live entry.
var ErrAlreadyPending = errors.New("deletion already pending for thread")

// Key identifies a conversation thread.
type Key struct {
	Channel string
	Thread  string
}

// Deletion is a delete request awaiting a yes/no answer.
type Deletion struct {
	DecisionID string
	Title      string
	Summary    string
	Tag        string
	CreatedAt  time.Time
}

// Registry is a mutex-guarded map of pending deletions.
// A zero TTL keeps entries until they are resolved.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]Deletion
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[Key]Deletion),
		ttl:     ttl,
		now:     time.Now,
	}
}

// expired must be called with mu held.
func (r *Registry) expired(d Deletion) bool {
	return r.ttl > 0 && r.now().Sub(d.CreatedAt) >= r.ttl
}

// lookup returns the live entry for key, dropping it if expired.
// Must be called with mu held.
func (r *Registry) lookup(key Key) (Deletion, bool) {
	d, ok := r.entries[key]
	if !ok {
		return Deletion{}, false
	}
	if r.expired(d) {
		delete(r.entries, key)
		return Deletion{}, false
	}
	return d, true
}

// Get returns the live entry for key.
func (r *Registry) Get(key Key) (Deletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(key)
}

// Open records d for key. An existing live entry must be resolved first.
// CreatedAt is stamped when zero.
func (r *Registry) Open(key Key, d Deletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lookup(key); ok {
		return ErrAlreadyPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	r.entries[key] = d
	return nil
}

// Resolve removes and returns the live entry for key.
func (r *Registry) Resolve(key Key) (Deletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.lookup(key)
	if ok {
		delete(r.entries, key)
	}
	return d, ok
}

// Len returns the number of stored entries, expired ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, d := range r.entries {
		if r.expired(d) {
			delete(r.entries, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done. It returns immediately
// when the registry has no TTL.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

package memory

import (
	"sync"

	"github.com/patrickmn/go-cache"
)

// WindowRepository keeps a bounded, FIFO-evicting window per key. Entries
// never expire; a key goes away only on Reset or Clear.
//
// Get/Append/Reset are individually atomic. A caller that must read, do
// slow work and then append without interleaving with another caller on
// the same key holds Lock(key) for the whole sequence.
type WindowRepository[T any] struct {
	mu       sync.Mutex
	cache    *cache.Cache
	capacity int

	keyMu    sync.Mutex
	keyLocks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewWindowRepository[T any](capacity int) *WindowRepository[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &WindowRepository[T]{
		cache:    cache.New(cache.NoExpiration, 0),
		capacity: capacity,
		keyLocks: make(map[string]*keyLock),
	}
}

func (r *WindowRepository[T]) Capacity() int {
	return r.capacity
}

// Get returns a copy of the window, empty when the key is absent.
func (r *WindowRepository[T]) Get(key string) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.load(key)...)
}

// Append adds items oldest-first and drops the oldest entries beyond capacity.
func (r *WindowRepository[T]) Append(key string, items ...T) {
	if len(items) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	window := append(r.load(key), items...)
	if over := len(window) - r.capacity; over > 0 {
		window = append([]T(nil), window[over:]...)
	}
	r.cache.Set(key, window, cache.NoExpiration)
}

// Reset clears the window and removes the key.
func (r *WindowRepository[T]) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(key)
}

// Len is the current number of entries for key.
func (r *WindowRepository[T]) Len(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.load(key))
}

// Keys is the number of live windows.
func (r *WindowRepository[T]) Keys() int {
	return r.cache.ItemCount()
}

// Clear drops every window, used on teardown.
func (r *WindowRepository[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Flush()
}

// Lock serializes callers on key and returns the matching unlock.
func (r *WindowRepository[T]) Lock(key string) func() {
	r.keyMu.Lock()
	kl, ok := r.keyLocks[key]
	if !ok {
		kl = &keyLock{}
		r.keyLocks[key] = kl
	}
	kl.refs++
	r.keyMu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		r.keyMu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(r.keyLocks, key)
		}
		r.keyMu.Unlock()
	}
}

func (r *WindowRepository[T]) load(key string) []T {
	if x, found := r.cache.Get(key); found {
		return x.([]T)
	}
	return nil
}

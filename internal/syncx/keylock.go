// Package syncx holds the striped key lock used to serialize per-key
// read-modify-write sequences (crawl dedup by title and url, posting
// upserts by term) without one global mutex.
package syncx

import (
	"hash/maphash"
	"sync"
)

// KeyLock maps keys onto a fixed set of mutexes. Two keys may share a
// stripe, so holders must never take a second key while holding one.
type KeyLock struct {
	seed    maphash.Seed
	stripes []sync.Mutex
}

// NewKeyLock returns a KeyLock with n stripes (at least 1).
func NewKeyLock(n int) *KeyLock {
	if n < 1 {
		n = 1
	}
	return &KeyLock{
		seed:    maphash.MakeSeed(),
		stripes: make([]sync.Mutex, n),
	}
}

func (l *KeyLock) stripe(key string) *sync.Mutex {
	return &l.stripes[maphash.String(l.seed, key)%uint64(len(l.stripes))]
}

// Lock acquires the stripe owning key and returns its unlock function.
func (l *KeyLock) Lock(key string) (unlock func()) {
	mu := l.stripe(key)
	mu.Lock()
	return mu.Unlock
}

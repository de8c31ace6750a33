// Package dedupe tracks content hashes so each distinct table is emitted once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen content hashes.
type Deduper interface {
	// SeenAndRecord atomically checks if hash was seen and records it if not.
	// Returns true if hash was already seen.
	SeenAndRecord(ctx context.Context, hash string) bool

	// Size is the number of hashes currently held.
	Size() int64
}

// inMemoryDeduper keeps hashes in a map. In bounded mode the oldest
// hashes are evicted first, tracked by a ring of insertion order.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // hash -> ring slot, -1 when unbounded
	ring    []string
	next    int
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a deduper, unbounded unless WithMaxSize is given.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{seen: make(map[string]int)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[hash]; ok {
		return true
	}
	if d.maxSize <= 0 {
		d.seen[hash] = -1
		d.size.Add(1)
		return false
	}

	// The ring grows with use and only overwrites once it is full.
	slot := d.next
	if slot == len(d.ring) {
		d.ring = append(d.ring, hash)
	} else {
		delete(d.seen, d.ring[slot])
		d.size.Add(-1)
		d.ring[slot] = hash
	}
	d.seen[hash] = slot
	d.next = (d.next + 1) % d.maxSize
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

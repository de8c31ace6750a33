package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/okian/tabletriage/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: confidence ASC, then id ASC. "less" means reviewed earlier, so
// an in-order traversal yields the review queue. Priorities hash the id,
// which keeps the shape independent of insertion order.

const defaultMaxItems = 100_000

type node struct {
	id    string
	conf  float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aConf float64, aID string, bConf float64, bID string) bool {
	if aConf != bConf {
		return aConf < bConf
	}
	return aID < bID
}

func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, conf float64) *node {
	if n == nil {
		return &node{id: id, conf: conf, prio: priority(id), size: 1}
	}
	if less(conf, id, n.conf, n.id) {
		n.left = insert(n.left, id, conf)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, conf)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, conf float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case conf == n.conf && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, conf)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, conf)
		}
	case less(conf, id, n.conf, n.id):
		n.left = deleteNode(n.left, id, conf)
	default:
		n.right = deleteNode(n.right, id, conf)
	}
	fix(n)
	return n
}

// rank counts the nodes ordered before (conf, id).
func rank(n *node, id string, conf float64) int {
	r := 0
	for n != nil {
		switch {
		case conf == n.conf && id == n.id:
			return r + nsize(n.left)
		case less(conf, id, n.conf, n.id):
			n = n.left
		default:
			r += nsize(n.left) + 1
			n = n.right
		}
	}
	return r
}

func last(n *node) *node {
	for n != nil && n.right != nil {
		n = n.right
	}
	return n
}

func collect(n *node, limit int, items map[string]Item, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, items, out)
	if len(*out) < limit {
		*out = append(*out, Entry{Rank: len(*out) + 1, Item: items[n.id]})
	}
	if len(*out) < limit {
		collect(n.right, limit, items, out)
	}
}

// TreapStore is the in-memory review queue.
type TreapStore struct {
	mu       sync.RWMutex
	root     *node
	byID     map[string]Item
	maxItems int
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:     make(map[string]Item),
		maxItems: defaultMaxItems,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateReviewQueueSize(0)
	return s
}

// Put inserts or replaces an item in O(log n) expected time.
func (s *TreapStore) Put(_ context.Context, it Item) error {
	if it.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	if math.IsNaN(it.Confidence) {
		return fmt.Errorf("%w: %s: confidence is NaN", ErrInvalidItem, it.ID)
	}

	s.mu.Lock()
	if old, ok := s.byID[it.ID]; ok {
		s.root = deleteNode(s.root, old.ID, old.Confidence)
	}
	s.byID[it.ID] = it
	s.root = insert(s.root, it.ID, it.Confidence)
	for len(s.byID) > s.maxItems {
		top := last(s.root)
		s.root = deleteNode(s.root, top.id, top.conf)
		delete(s.byID, top.id)
	}
	size := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateReviewQueueSize(size)
	return nil
}

// Lowest returns the n least confident items.
func (s *TreapStore) Lowest(_ context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordReviewQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byID)))
	collect(s.root, n, s.byID, &out)
	return out, nil
}

// Position returns the review position of id in O(log n).
func (s *TreapStore) Position(_ context.Context, id string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordReviewQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: rank(s.root, it.ID, it.Confidence) + 1, Item: it}, nil
}

// Count returns the number of tracked items.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

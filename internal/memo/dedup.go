package memo

import (
	"encoding/json"
	"sync"

	"github.com/notfartdev/zdoge-sub004/internal/storage"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// maxProcessedEntries bounds the processed-event dedup sets (§4.6:
// "processed-event sets are capped at 500 entries, FIFO-evicted").
const maxProcessedEntries = 500

// ProcessedSet is a small persisted FIFO-capped set of seen event keys,
// used to make the scanner and the unshield watcher idempotent across
// restarts. Grounded on the obsidian-core ShieldedPool's commitments/
// nullifiers maps (other_examples/...blockchain-shielded_pool.go), adapted
// from an unbounded map to an eviction-ordered one since the pool there
// never bounds its set.
type ProcessedSet struct {
	mu      sync.Mutex
	store   storage.Store
	key     string
	order   []string
	seen    map[string]bool
}

// LoadProcessedSet loads (or initializes) a processed set persisted under
// storeKey in store.
func LoadProcessedSet(store storage.Store, storeKey string) (*ProcessedSet, error) {
	s := &ProcessedSet{store: store, key: storeKey, seen: make(map[string]bool)}
	raw, ok, err := store.Get(storeKey)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.StorageUnavailable, "load processed set", err)
	}
	if !ok {
		return s, nil
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, walleterr.Wrap(walleterr.StorageUnavailable, "decode processed set", err)
	}
	s.order = order
	for _, k := range order {
		s.seen[k] = true
	}
	return s, nil
}

// Has reports whether key has already been processed.
func (s *ProcessedSet) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key]
}

// Add records key as processed, persisting the updated set and evicting
// the oldest entry once the set exceeds maxProcessedEntries.
func (s *ProcessedSet) Add(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return nil
	}
	s.seen[key] = true
	s.order = append(s.order, key)
	for len(s.order) > maxProcessedEntries {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, evicted)
	}
	raw, err := json.Marshal(s.order)
	if err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "encode processed set", err)
	}
	if err := s.store.Set(s.key, raw); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "persist processed set", err)
	}
	return nil
}

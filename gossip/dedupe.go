package gossip

import (
	lru "github.com/hashicorp/golang-lru"
)

// dedupeCacheSize bounds the recent-hash set used to stop a block from
// being rebroadcast indefinitely once every peer has already seen it. Sized
// generously relative to any cluster this simulator targets (a handful of
// nodes, tens of blocks per run).
const dedupeCacheSize = 4096

// Dedupe is a bounded set of recently-seen block hashes, backed by an LRU
// cache so that memory stays flat across a long run instead of growing with
// every block ever gossiped.
type Dedupe struct {
	cache *lru.Cache
}

// NewDedupe creates a Dedupe with the default capacity.
func NewDedupe() *Dedupe {
	cache, err := lru.New(dedupeCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which dedupeCacheSize
		// never is.
		panic(err)
	}
	return &Dedupe{cache: cache}
}

// SeenBefore reports whether hash was already recorded, and records it if
// not. A race between two goroutines on the same brand-new hash can yield
// two "first time" answers; the worst consequence is one extra rebroadcast,
// which downstream dedup on the receiving peers absorbs.
func (d *Dedupe) SeenBefore(hash string) bool {
	if d.cache.Contains(hash) {
		return true
	}
	d.cache.Add(hash, struct{}{})
	return false
}

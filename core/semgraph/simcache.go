package semgraph

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/constel/core/semgraph/vecmath"
)

type simKey struct {
	lo, hi int64
}

// SimCache memoizes pairwise cosine similarities keyed by unordered node ID
// pair. Similarity is symmetric, so (a, b) and (b, a) share one entry.
//
// The cache is purely an optimization for the O(n²) derivation passes
// (bridge detection, repeated insert probes); correctness never depends on a
// hit, and entries keyed by ID stay valid because embeddings are immutable
// for a node's lifetime.
type SimCache struct {
	cache *lru.Cache[simKey, float64]
}

// NewSimCache creates a similarity cache bounded to size entries.
// Sizes below 1 fall back to DefaultSimCacheSize.
func NewSimCache(size int) *SimCache {
	if size < 1 {
		size = DefaultSimCacheSize
	}
	// lru.New only fails for non-positive sizes, which are normalized above.
	cache, _ := lru.New[simKey, float64](size)
	return &SimCache{cache: cache}
}

// Similarity returns the cosine similarity between two nodes' rich
// embeddings, computing and recording it on a miss.
func (sc *SimCache) Similarity(a, b *Node) float64 {
	key := pairKey(a.ID, b.ID)
	if sim, ok := sc.cache.Get(key); ok {
		return sim
	}
	sim := vecmath.Cosine(a.EmbeddingRich, b.EmbeddingRich)
	sc.cache.Add(key, sim)
	return sim
}

// Purge drops all cached entries.
func (sc *SimCache) Purge() {
	sc.cache.Purge()
}

// Len returns the current entry count.
func (sc *SimCache) Len() int {
	return sc.cache.Len()
}

func pairKey(a, b int64) simKey {
	if a > b {
		a, b = b, a
	}
	return simKey{lo: a, hi: b}
}

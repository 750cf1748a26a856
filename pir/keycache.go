package pir

import (
	"sync"

	"github.com/elliotchance/orderedmap"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"golang.org/x/crypto/sha3"

	"github.com/PinkeshGjr/PIRService/he"
)

// defaultKeyCacheSize bounds the number of parsed evaluation key sets
// kept in memory. Key sets are a few MB each, so the cache stays small.
const defaultKeyCacheSize = 32

// keyCache memoizes deserialized evaluation key sets by content digest.
// Clients reuse the same key set across queries, and parsing one is
// expensive enough to be worth skipping on repeat traffic. Eviction is
// LRU over insertion order.
type keyCache struct {
	mu  sync.Mutex
	cap int
	m   *orderedmap.OrderedMap
}

func newKeyCache(capacity int) *keyCache {
	if capacity <= 0 {
		capacity = defaultKeyCacheSize
	}
	return &keyCache{cap: capacity, m: orderedmap.NewOrderedMap()}
}

func (c *keyCache) get(engine *he.Engine, raw []byte) (*rlwe.MemEvaluationKeySet, error) {
	digest := sha3.Sum256(raw)
	key := string(digest[:])

	c.mu.Lock()
	if v, ok := c.m.Get(key); ok {
		// Refresh recency.
		c.m.Delete(key)
		c.m.Set(key, v)
		c.mu.Unlock()
		return v.(*rlwe.MemEvaluationKeySet), nil
	}
	c.mu.Unlock()

	evk, err := engine.ParseEvaluationKeys(raw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.m.Set(key, evk)
	for c.m.Len() > c.cap {
		c.m.Delete(c.m.Front().Key)
	}
	c.mu.Unlock()
	return evk, nil
}

func (c *keyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.Len()
}

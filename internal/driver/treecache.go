package driver

import (
	"fmt"

	"github.com/maypok86/otter"

	"stubtree/internal/project"
	"stubtree/internal/stub"
)

// cachedTree is a decoded tree together with its encoding, so a hit can be
// persisted without re-encoding.
type cachedTree struct {
	tree *stub.Tree
	blob []byte
}

// TreeCache keeps decoded trees in memory, keyed by the same digest as the
// disk cache. A nil *TreeCache is a valid, always-missing cache.
type TreeCache struct {
	c otter.Cache[project.Digest, cachedTree]
}

// NewTreeCache creates a cache holding up to capacity trees. Zero capacity
// returns nil.
func NewTreeCache(capacity int) (*TreeCache, error) {
	if capacity <= 0 {
		return nil, nil
	}
	c, err := otter.MustBuilder[project.Digest, cachedTree](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("tree cache: %w", err)
	}
	return &TreeCache{c: c}, nil
}

// Get returns a sealed tree and its blob.
func (c *TreeCache) Get(key project.Digest) (*stub.Tree, []byte, bool) {
	if c == nil {
		return nil, nil, false
	}
	v, ok := c.c.Get(key)
	if !ok {
		return nil, nil, false
	}
	return v.tree, v.blob, true
}

// Put stores a sealed tree. Unsealed trees are ignored: they may still change.
func (c *TreeCache) Put(key project.Digest, tree *stub.Tree, blob []byte) {
	if c == nil || tree == nil || !tree.Sealed() {
		return
	}
	c.c.Set(key, cachedTree{tree: tree, blob: blob})
}

// Len reports the number of cached trees.
func (c *TreeCache) Len() int {
	if c == nil {
		return 0
	}
	return c.c.Size()
}

// HitRatio is hits/(hits+misses) since creation.
func (c *TreeCache) HitRatio() float64 {
	if c == nil {
		return 0
	}
	return c.c.Stats().Ratio()
}

// Close stops the cache's background work.
func (c *TreeCache) Close() {
	if c == nil {
		return
	}
	c.c.Close()
}

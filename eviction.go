package pathoram

import "context"

// Evict drains the stash into the tree along every path touched since
// the last eviction (the cache set), writes the affected buckets back to
// the channel in one batched request, and clears the cache. It is the
// caller's responsibility to call Evict after enough accesses that the
// stash would otherwise grow unbounded; Read/Write never call it
// implicitly (see AccessAndEvict for the common "evict every access"
// pattern).
func (c *Client) Evict(ctx context.Context) error {
	pages, err := c.evictOnce(false)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		c.cache.Clear()
		return nil
	}
	if err := c.channel.WriteBuckets(ctx, pages); err != nil {
		return errChannelFailure("write", err)
	}
	c.cache.Clear()
	return nil
}

// evictOnce runs the configured eviction strategy once and returns the
// plaintext-encrypted pages that must be written back, without touching
// the channel or clearing the cache — callers (Evict, Setup) decide when
// the write-back and cache-clear actually happen. tolerateOverflow
// suppresses the StashOverflow error, for use during Setup where packing
// the whole dataset at once is expected to transiently overflow the
// stash bound.
func (c *Client) evictOnce(tolerateOverflow bool) (map[uint64][]byte, error) {
	var buckets map[uint64]Bucket
	switch c.cfg.EvictionStrategy {
	case EvictGreedyByDepth:
		buckets = c.evictGreedyByDepth()
	default:
		buckets = c.evictLevelByLevel()
	}

	if !tolerateOverflow && c.stash.Len() > c.cfg.MaxStash {
		return nil, ErrStashOverflow
	}

	pages := make(map[uint64][]byte, len(buckets))
	for id, b := range buckets {
		plaintext := marshalBucket(b, c.cfg.ValueSize)
		ciphertext, err := c.cipher.EncryptBucket(plaintext)
		if err != nil {
			return nil, ErrCryptoFailure
		}
		pages[id] = ciphertext
	}
	return pages, nil
}

// evictLevelByLevel is the baseline strategy: process levels leaf-first
// to root-last, and within each level place blocks into freshly allocated
// buckets using first-fit over the current stash scan order. Tie-break:
// when several stash blocks could fill a slot, whichever the scan visits
// first wins — this doesn't leak anything because bucket contents are
// encrypted before they ever leave the client.
func (c *Client) evictLevelByLevel() map[uint64]Bucket {
	buckets := make(map[uint64]Bucket)

	for level := c.geo.Height; level >= 0; level-- {
		low, high := c.geo.levelRange(level)
		for _, id := range c.cache.InLevel(low, high) {
			buckets[id] = newEmptyBucket(c.cfg.Z, c.cfg.ValueSize)
		}

		pathIndex := c.geo.Height - level

		i := 0
		for i < c.stash.Len() {
			b := c.stash.At(i)
			target, ok := c.targetAtLevel(b.Key, pathIndex)
			if !ok {
				i++
				continue
			}
			bucket, allocated := buckets[target]
			if !allocated || bucket.Fill == len(bucket.Slots) {
				i++
				continue
			}
			bucket.Slots[bucket.Fill] = b
			bucket.Fill++
			buckets[target] = bucket
			// Swap-with-last removal: re-examine index i instead of
			// advancing, since the stash slot at i now holds the block
			// that used to be last. This is the fix for the "erase at
			// current index while continuing with i+1" bug: that pattern
			// skips whatever got swapped into the hole.
			c.stash.RemoveAt(i)
		}
	}

	return buckets
}

// evictGreedyByDepth places each stash block at the deepest level its
// assigned path allows, scanning the whole path for every block instead
// of processing one level at a time. It tends to leave fewer blocks
// stranded in the stash under sustained load, at the cost of allocating
// every cached bucket up front rather than level-by-level.
func (c *Client) evictGreedyByDepth() map[uint64]Bucket {
	buckets := make(map[uint64]Bucket)
	for level := c.geo.Height; level >= 0; level-- {
		low, high := c.geo.levelRange(level)
		for _, id := range c.cache.InLevel(low, high) {
			buckets[id] = newEmptyBucket(c.cfg.Z, c.cfg.ValueSize)
		}
	}

	i := 0
	for i < c.stash.Len() {
		b := c.stash.At(i)
		leaf, ok := c.posMap.Get(b.Key)
		if !ok {
			i++
			continue
		}
		path := c.geo.PathToLeaf(leaf, nil)

		placed := false
		for pathIndex := 0; pathIndex <= c.geo.Height; pathIndex++ {
			target := path[pathIndex]
			bucket, allocated := buckets[target]
			if !allocated || bucket.Fill == len(bucket.Slots) {
				continue
			}
			bucket.Slots[bucket.Fill] = b
			bucket.Fill++
			buckets[target] = bucket
			c.stash.RemoveAt(i)
			placed = true
			break
		}
		if !placed {
			i++
		}
	}

	return buckets
}

// targetAtLevel returns the bucket id on key's currently assigned path
// that sits at the given leaf-counted path index (0 == leaf, Height ==
// root), and whether key currently has an assigned leaf at all.
func (c *Client) targetAtLevel(key uint32, pathIndex int) (uint64, bool) {
	leaf, ok := c.posMap.Get(key)
	if !ok {
		return 0, false
	}
	path := c.geo.PathToLeaf(leaf, nil)
	return path[pathIndex], true
}

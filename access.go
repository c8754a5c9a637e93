package pathoram

import "context"

// Read fetches the current value of key. It remaps key to a fresh random
// leaf as a side effect, as every access must, so that two reads of the
// same key are statistically independent from the server's point of
// view. Evict is not called automatically; callers that want the
// recommended "evict after every access" discipline should use
// AccessAndEvict, or call Evict themselves.
func (c *Client) Read(ctx context.Context, key uint32) ([]byte, error) {
	if c.state != stateInitialized {
		panic("pathoram: Read called before Setup")
	}

	if err := c.fetchPath(ctx, key); err != nil {
		return nil, err
	}

	idx := c.stash.FindByKey(key)
	if idx == -1 {
		return nil, ErrKeyNotFound
	}
	value := make([]byte, len(c.stash.At(idx).Value))
	copy(value, c.stash.At(idx).Value)
	return value, nil
}

// Write overwrites the value of key in place, leaving the key's presence
// in the stash untouched if it isn't found (spec.md §7: KeyNotFound is
// recoverable, callers may choose to treat an absent key as "needs a
// prior Read/Setup" rather than an implicit insert). key is remapped to a
// fresh random leaf exactly as Read does.
func (c *Client) Write(ctx context.Context, key uint32, value []byte) error {
	if c.state != stateInitialized {
		panic("pathoram: Write called before Setup")
	}
	if len(value) != c.cfg.ValueSize {
		panic("pathoram: Write: value has wrong size")
	}

	if err := c.fetchPath(ctx, key); err != nil {
		return err
	}

	idx := c.stash.FindByKey(key)
	if idx == -1 {
		return ErrKeyNotFound
	}

	// Mutate the stash entry directly by index — never copy the block out
	// of the stash, modify the copy, and discard it, which is the bug the
	// design doc calls out in the source's Write path.
	b := c.stash.At(idx)
	newValue := make([]byte, len(value))
	copy(newValue, value)
	b.Value = newValue
	c.stash.Set(idx, b)

	return nil
}

// fetchPath looks up (or lazily assigns) key's current leaf, reads that
// path into the stash, and assigns key a fresh random leaf. This happens
// regardless of whether key is ultimately found in the stash.
func (c *Client) fetchPath(ctx context.Context, key uint32) error {
	leaf, exists := c.posMap.Get(key)
	if !exists {
		leaf = randomLeaf(c.geo)
	}

	ids := c.geo.PathToLeaf(leaf, c.cache)
	if err := c.readPathIntoStash(ctx, ids); err != nil {
		return err
	}

	c.posMap.AssignRandom(key)
	return nil
}

// AccessAndEvict performs a Read (if value is nil) or a Write (otherwise)
// followed by an Evict, matching the usage pattern the design doc
// recommends for bounding stash growth: evict after every logical
// operation.
func (c *Client) AccessAndEvict(ctx context.Context, key uint32, value []byte) ([]byte, error) {
	if value == nil {
		result, err := c.Read(ctx, key)
		if err != nil && err != ErrKeyNotFound {
			return nil, err
		}
		if evictErr := c.Evict(ctx); evictErr != nil {
			return nil, evictErr
		}
		return result, err
	}

	err := c.Write(ctx, key, value)
	if err != nil && err != ErrKeyNotFound {
		return nil, err
	}
	if evictErr := c.Evict(ctx); evictErr != nil {
		return nil, evictErr
	}
	return nil, err
}

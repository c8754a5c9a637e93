package transport

import (
	"bytes"
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// cacheStore wraps a base pageStore with an LRU cache of the requested
// size, exactly as persistent.cache wraps an ObjectStorage backend in the
// teacher repo.
type cacheStore struct {
	base  pageStore
	cache *lru.Cache
}

// newCacheStore wraps base with an LRU cache holding up to size pages.
func newCacheStore(base pageStore, size int) (pageStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &cacheStore{base, c}, nil
}

func (c *cacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	if val, ok := c.cache.Get(key); ok {
		return dup(val.([]byte)), nil
	}
	data, err := c.base.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, dup(data))
	return data, nil
}

func (c *cacheStore) Set(ctx context.Context, key string, data []byte) error {
	if cand, ok := c.cache.Get(key); ok && bytes.Equal(cand.([]byte), data) {
		return nil
	}
	c.cache.Remove(key)
	if err := c.base.Set(ctx, key, data); err != nil {
		return err
	}
	c.cache.Add(key, dup(data))
	return nil
}

func dup(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

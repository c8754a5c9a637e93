package pathoram

import (
	"context"
	"fmt"
	"sync"

	"github.com/fenwick-labs/pathoram/crypto"
	"github.com/fenwick-labs/pathoram/transport"
)

// state tracks the client's lifecycle: New -> Constructed -> Initialized
// -> (Operating <-> Evicting). Transitions outside this order are
// programmer error and panic, per the Misuse error kind.
type state int

const (
	stateConstructed state = iota
	stateInitialized
)

// ClientConfig holds the parameters fixed for the lifetime of a Client.
type ClientConfig struct {
	N         int // declared capacity: number of addressable leaves
	Z         int // bucket capacity (blocks per bucket)
	ValueSize int // payload width in bytes (component A's B parameter)

	// MaxStash overrides the default stash bound of 2*Z*L. Zero means
	// use the default.
	MaxStash int

	// EvictionStrategy selects among the strategies declared below and
	// implemented in eviction.go. The zero value is EvictLevelByLevel, the baseline
	// algorithm described by the spec.
	EvictionStrategy EvictionStrategy
}

// EvictionStrategy selects which eviction algorithm Client.Evict runs.
type EvictionStrategy int

const (
	// EvictLevelByLevel is the baseline algorithm from the design doc:
	// process levels leaf-to-root, first-fit within each level.
	EvictLevelByLevel EvictionStrategy = iota

	// EvictGreedyByDepth places each stash block at the deepest level
	// its assigned path allows, which tends to reduce stash occupancy
	// under sustained load, at the cost of allocating every cached bucket
	// up front rather than level by level.
	EvictGreedyByDepth
)

// Client implements the Path ORAM protocol (component F): Setup once,
// then Read/Write/Evict as the access pattern demands. A Client is not
// safe for concurrent Read/Write/Evict calls on the same instance — the
// position map, stash, and cache are shared mutable state with no
// internal locking outside of ParallelSetup, which deliberately fans
// setup work across goroutines and guards the shared structures itself.
type Client struct {
	cfg     ClientConfig
	geo     Geometry
	channel transport.Channel
	cipher  crypto.Cipher

	posMap *PositionMap
	stash  *Stash
	cache  *Cache

	// stashMu guards Stash pushes made concurrently by ParallelSetup
	// workers. Normal Read/Write/Evict never touch it: the client is
	// single-threaded per the doc comment above.
	stashMu sync.Mutex

	state state
}

// New validates cfg, wires it to channel and cipher, and returns a Client
// in the Constructed state. It performs no I/O.
func New(cfg ClientConfig, channel transport.Channel, cipher crypto.Cipher) (*Client, error) {
	if cfg.N <= 0 {
		panic("pathoram: New: N must be positive")
	}
	if cfg.Z <= 0 {
		panic("pathoram: New: Z must be positive")
	}
	if cfg.ValueSize <= 0 {
		panic("pathoram: New: ValueSize must be positive")
	}

	geo := NewGeometry(cfg.N)

	if cfg.MaxStash == 0 {
		cfg.MaxStash = 2 * cfg.Z * geo.Height
	}

	if err := validatePageSize(geo, cfg, channel, cipher); err != nil {
		return nil, err
	}

	return &Client{
		cfg:     cfg,
		geo:     geo,
		channel: channel,
		cipher:  cipher,
		posMap:  NewPositionMap(geo),
		stash:   NewStash(),
		cache:   NewCache(),
		state:   stateConstructed,
	}, nil
}

// validatePageSize confirms that an encrypted, empty bucket's ciphertext
// length matches the channel's fixed page size, catching a cipher/channel
// mismatch at construction time rather than on the first access.
func validatePageSize(geo Geometry, cfg ClientConfig, channel transport.Channel, cipher crypto.Cipher) error {
	probe := marshalBucket(newEmptyBucket(cfg.Z, cfg.ValueSize), cfg.ValueSize)
	ct, err := cipher.EncryptBucket(probe)
	if err != nil {
		return fmt.Errorf("pathoram: New: probe encryption failed: %w", err)
	}
	if len(ct) != channel.PageSize() {
		return fmt.Errorf("pathoram: New: cipher produces %d-byte pages but channel expects %d", len(ct), channel.PageSize())
	}
	return nil
}

// StashSize returns the number of blocks currently held in the stash.
func (c *Client) StashSize() int { return c.stash.Len() }

// Size returns the number of keys with an assigned leaf position.
func (c *Client) Size() int { return c.posMap.Size() }

// Height returns the tree's height, L.
func (c *Client) Height() int { return c.geo.Height }

// readPathIntoStash fetches, decrypts, and deserializes every bucket on
// ids, pushing every non-empty slot whose key is not already in the stash
// (a bucket read again before the next eviction still holds its old
// contents on the server, and those blocks are already in the stash, so
// the stale second copy is dropped). It is atomic in the
// sense required by the concurrency model: either every bucket's
// contents land in the stash, or none do (a mid-read failure returns
// before any stash mutation).
func (c *Client) readPathIntoStash(ctx context.Context, ids []uint64) error {
	pages, err := c.channel.ReadBuckets(ctx, ids)
	if err != nil {
		return errChannelFailure("read", err)
	}

	buckets := make([]Bucket, len(ids))
	for i, id := range ids {
		page, ok := pages[id]
		if !ok {
			return fmt.Errorf("pathoram: channel did not return bucket %d", id)
		}
		plaintext, err := c.cipher.DecryptBucket(page)
		if err != nil {
			return ErrCryptoFailure
		}
		b, err := unmarshalBucket(plaintext, c.cfg.Z, c.cfg.ValueSize)
		if err != nil {
			return fmt.Errorf("pathoram: %w", ErrCryptoFailure)
		}
		buckets[i] = b
	}

	for _, b := range buckets {
		for i := 0; i < b.Fill; i++ {
			if c.stash.FindByKey(b.Slots[i].Key) != -1 {
				continue
			}
			c.stash.Push(b.Slots[i])
		}
	}
	return nil
}

package oramlb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fenwick-labs/pathoram"
	"github.com/fenwick-labs/pathoram/crypto"
	"github.com/fenwick-labs/pathoram/transport"
	"github.com/fenwick-labs/pathoram/workerpool"
)

// ErrTooManyBlocks is returned by Setup/ParallelSetup when the caller
// supplies more blocks than the declared capacity N.
var ErrTooManyBlocks = errors.New("oramlb: too many blocks for declared capacity")

type state int

const (
	stateConstructed state = iota
	stateInitialized
)

// ClientConfig holds the parameters fixed for the lifetime of a Client.
// It mirrors pathoram.ClientConfig, without EvictionStrategy, and adds
// LPP, the packing parameter.
type ClientConfig struct {
	N         int
	Z         int
	ValueSize int
	LPP       int // subtree height packed into one large-bucket page

	// MaxStash overrides the default stash bound. Zero means
	// 2*Z*(inner tree height), the same default pathoram.Client uses.
	MaxStash int
}

// Client implements Path ORAM with Large Buckets: Setup once, then
// Read/Write/Evict, exactly like pathoram.Client, except every channel
// round-trip moves whole pages, each an LPP-high subtree of small
// buckets, instead of single buckets. Not
// safe for concurrent Read/Write/Evict on one instance, same as
// pathoram.Client.
type Client struct {
	cfg       ClientConfig
	innerGeo  pathoram.Geometry
	vgeo      Geometry
	channel   transport.Channel
	cipher    crypto.Cipher
	bucketLen int // per-small-bucket ciphertext length

	posMap *pathoram.PositionMap
	stash  *pathoram.Stash
	cache  *pathoram.Cache

	state state
}

// New validates cfg, wires it to channel and cipher, and returns a
// Client in the Constructed state. It performs no I/O beyond a one-shot
// probe encryption used to size the large-bucket page.
func New(cfg ClientConfig, channel transport.Channel, cipher crypto.Cipher) (*Client, error) {
	if cfg.N <= 0 {
		panic("oramlb: New: N must be positive")
	}
	if cfg.Z <= 0 {
		panic("oramlb: New: Z must be positive")
	}
	if cfg.ValueSize <= 0 {
		panic("oramlb: New: ValueSize must be positive")
	}
	if cfg.LPP <= 0 {
		panic("oramlb: New: LPP must be positive")
	}

	innerGeo := pathoram.NewGeometry(cfg.N)
	vgeo := NewGeometry(innerGeo, cfg.LPP)

	if cfg.MaxStash == 0 {
		cfg.MaxStash = 2 * cfg.Z * innerGeo.Height
	}

	bucketLen, err := bucketCipherLen(cipher, cfg.Z, cfg.ValueSize)
	if err != nil {
		return nil, err
	}
	wantPage := bucketLen * vgeo.BucketsPerPage()
	if channel.PageSize() != wantPage {
		return nil, fmt.Errorf("oramlb: New: cipher/packing produce %d-byte pages but channel expects %d", wantPage, channel.PageSize())
	}

	return &Client{
		cfg:       cfg,
		innerGeo:  innerGeo,
		vgeo:      vgeo,
		channel:   channel,
		cipher:    cipher,
		bucketLen: bucketLen,
		posMap:    pathoram.NewPositionMap(innerGeo),
		stash:     pathoram.NewStash(),
		cache:     pathoram.NewCache(),
		state:     stateConstructed,
	}, nil
}

// StashSize returns the number of blocks currently held in the stash.
func (c *Client) StashSize() int { return c.stash.Len() }

// Height returns the underlying tree's height (not the virtual height).
func (c *Client) Height() int { return c.innerGeo.Height }

// Read fetches the current value of key, remapping it to a fresh random
// leaf as a side effect. See pathoram.Client.Read for the obliviousness
// rationale; the only difference here is that a path fetch moves Lv
// pages instead of L+1 buckets.
func (c *Client) Read(ctx context.Context, key uint32) ([]byte, error) {
	if c.state != stateInitialized {
		panic("oramlb: Read called before Setup")
	}
	if err := c.fetchPath(ctx, key); err != nil {
		return nil, err
	}
	idx := c.stash.FindByKey(key)
	if idx == -1 {
		return nil, pathoram.ErrKeyNotFound
	}
	value := make([]byte, len(c.stash.At(idx).Value))
	copy(value, c.stash.At(idx).Value)
	return value, nil
}

// Write overwrites the value of key in place.
func (c *Client) Write(ctx context.Context, key uint32, value []byte) error {
	if c.state != stateInitialized {
		panic("oramlb: Write called before Setup")
	}
	if len(value) != c.cfg.ValueSize {
		panic("oramlb: Write: value has wrong size")
	}
	if err := c.fetchPath(ctx, key); err != nil {
		return err
	}
	idx := c.stash.FindByKey(key)
	if idx == -1 {
		return pathoram.ErrKeyNotFound
	}
	b := c.stash.At(idx)
	newValue := make([]byte, len(value))
	copy(newValue, value)
	b.Value = newValue
	c.stash.Set(idx, b)
	return nil
}

// fetchPath looks up (or lazily assigns) key's leaf, reads the virtual
// pages covering that path into the stash, and assigns key a fresh
// random leaf regardless of whether the read located it.
func (c *Client) fetchPath(ctx context.Context, key uint32) error {
	leaf, exists := c.posMap.Get(key)
	if !exists {
		leaf = pathoram.RandomLeaf(c.innerGeo)
	}

	originalPath := c.innerGeo.PathToLeaf(leaf, nil)
	vids := c.vgeo.VirtualPath(originalPath)
	c.cache.AddAll(vids)

	if err := c.readPathIntoStash(ctx, vids); err != nil {
		return err
	}

	c.posMap.AssignRandom(key)
	return nil
}

// readPathIntoStash fetches and unpacks every virtual page in vids,
// pushing all non-empty small-bucket slots onto the stash. As with
// pathoram.Client.readPathIntoStash, this is atomic: a failure partway
// through returns before any stash mutation happens.
func (c *Client) readPathIntoStash(ctx context.Context, vids []uint64) error {
	pages, err := c.channel.ReadBuckets(ctx, vids)
	if err != nil {
		return fmt.Errorf("oramlb: channel read failed: %w", err)
	}

	bpp := c.vgeo.BucketsPerPage()
	allBuckets := make([][]pathoram.Bucket, len(vids))
	for i, vid := range vids {
		page, ok := pages[vid]
		if !ok {
			return fmt.Errorf("oramlb: channel did not return page %d", vid)
		}
		buckets, err := UnpackPage(c.cipher, page, c.bucketLen, bpp, c.cfg.Z, c.cfg.ValueSize)
		if err != nil {
			return err
		}
		allBuckets[i] = buckets
	}

	for _, buckets := range allBuckets {
		for _, b := range buckets {
			for i := 0; i < b.Fill; i++ {
				// Same as pathoram.Client: a page read again before the
				// next eviction holds stale copies of blocks already in
				// the stash, so those are skipped.
				if c.stash.FindByKey(b.Slots[i].Key) != -1 {
					continue
				}
				c.stash.Push(b.Slots[i])
			}
		}
	}
	return nil
}

// Evict drains the stash into the tree along every virtual page touched
// since the last eviction, writes them back in one batched request, and
// clears the cache.
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
		return fmt.Errorf("oramlb: channel write failed: %w", err)
	}
	c.cache.Clear()
	return nil
}

// evictOnce processes virtual levels leaf-to-root. For each cached
// virtual id at the current level it allocates a fresh page of
// BucketsPerPage small buckets; it then scans the stash, and for each
// block tries every original-tree position on its path that falls
// within this virtual level's LPP-level band (there's exactly one
// candidate vid per band per path, but up to LPP distinct small-bucket
// offsets within it), placing the block in the first one with room.
func (c *Client) evictOnce(tolerateOverflow bool) (map[uint64][]byte, error) {
	bpp := c.vgeo.BucketsPerPage()
	pageBuckets := make(map[uint64][]pathoram.Bucket)

	for v := c.vgeo.Lv; v >= 0; v-- {
		low, high := c.vgeo.VirtualLevelRange(v)
		for _, vid := range c.cache.InLevel(low, high) {
			if _, ok := pageBuckets[vid]; ok {
				continue
			}
			bs := make([]pathoram.Bucket, bpp)
			for i := range bs {
				bs[i] = pathoram.NewEmptyBucket(c.cfg.Z, c.cfg.ValueSize)
			}
			pageBuckets[vid] = bs
		}

		bandLow := v * c.cfg.LPP
		bandHigh := bandLow + c.cfg.LPP - 1
		if bandHigh > c.innerGeo.Height {
			bandHigh = c.innerGeo.Height
		}
		// path index = Height - level (path is leaf-first, level 0 is root)
		loIdx := c.innerGeo.Height - bandHigh
		hiIdx := c.innerGeo.Height - bandLow

		i := 0
		for i < c.stash.Len() {
			b := c.stash.At(i)
			leaf, ok := c.posMap.Get(b.Key)
			if !ok {
				i++
				continue
			}
			path := c.innerGeo.PathToLeaf(leaf, nil)

			placed := false
			for pathIndex := loIdx; pathIndex <= hiIdx; pathIndex++ {
				vid, offset := c.vgeo.Transform(path[pathIndex] + 1)
				bs, allocated := pageBuckets[vid]
				if !allocated {
					continue
				}
				bucket := bs[offset]
				if bucket.Fill == len(bucket.Slots) {
					continue
				}
				bucket.Slots[bucket.Fill] = b
				bucket.Fill++
				bs[offset] = bucket
				// Swap-with-last: re-examine index i, don't advance,
				// same discipline pathoram.Client's eviction uses.
				c.stash.RemoveAt(i)
				placed = true
				break
			}
			if !placed {
				i++
			}
		}
	}

	if !tolerateOverflow && c.stash.Len() > c.cfg.MaxStash {
		return nil, pathoram.ErrStashOverflow
	}

	pages := make(map[uint64][]byte, len(pageBuckets))
	for vid, bs := range pageBuckets {
		page, err := PackPage(c.cipher, bs, c.cfg.ValueSize)
		if err != nil {
			return nil, pathoram.ErrCryptoFailure
		}
		pages[vid] = page
	}
	return pages, nil
}

// AccessAndEvict performs a Read (if value is nil) or a Write (otherwise)
// followed by an Evict.
func (c *Client) AccessAndEvict(ctx context.Context, key uint32, value []byte) ([]byte, error) {
	if value == nil {
		result, err := c.Read(ctx, key)
		if err != nil && err != pathoram.ErrKeyNotFound {
			return nil, err
		}
		if evictErr := c.Evict(ctx); evictErr != nil {
			return nil, evictErr
		}
		return result, err
	}

	err := c.Write(ctx, key, value)
	if err != nil && err != pathoram.ErrKeyNotFound {
		return nil, err
	}
	if evictErr := c.Evict(ctx); evictErr != nil {
		return nil, evictErr
	}
	return nil, err
}

// Setup performs the one-time initial load of blocks. Equivalent to
// ParallelSetup with a single worker.
func (c *Client) Setup(ctx context.Context, blocks []pathoram.Block) error {
	return c.setup(ctx, nil, blocks, 1)
}

// ParallelSetup fans block assignment out across pool's workers, then
// runs one serial eviction over the whole virtual tree.
func (c *Client) ParallelSetup(ctx context.Context, pool workerpool.Pool, blocks []pathoram.Block, t int) error {
	if t <= 0 {
		panic("oramlb: ParallelSetup: t must be positive")
	}
	return c.setup(ctx, pool, blocks, t)
}

func (c *Client) setup(ctx context.Context, pool workerpool.Pool, blocks []pathoram.Block, t int) error {
	if c.state != stateConstructed {
		panic("oramlb: Setup called twice")
	}
	if len(blocks) > c.cfg.N {
		return ErrTooManyBlocks
	}

	ranges := partition(len(blocks), t)
	var stashMu sync.Mutex

	assign := func(_ context.Context, worker int) error {
		lo, hi := ranges[worker][0], ranges[worker][1]
		for i := lo; i < hi; i++ {
			b := blocks[i]
			leaf := pathoram.RandomLeaf(c.innerGeo)
			c.posMap.Set(b.Key, leaf)

			stashMu.Lock()
			c.stash.Push(pathoram.Block{Key: b.Key, Value: append([]byte(nil), b.Value...)})
			stashMu.Unlock()
		}
		return nil
	}

	var err error
	if pool != nil && t > 1 {
		err = pool.Run(ctx, t, assign)
	} else {
		for w := 0; w < t; w++ {
			if e := assign(ctx, w); e != nil {
				err = e
				break
			}
		}
	}
	if err != nil {
		return err
	}

	c.cache.AddRange(1, uint64(c.vgeo.TotalVirtualNodes())+1)

	pages, err := c.evictOnce(true)
	if err != nil {
		return err
	}
	if len(pages) > 0 {
		if err := c.channel.WriteBuckets(ctx, pages); err != nil {
			return fmt.Errorf("oramlb: channel write failed: %w", err)
		}
	}
	c.cache.Clear()

	c.state = stateInitialized
	return nil
}

// partition splits [0, n) into t contiguous, nearly-equal ranges.
func partition(n, t int) [][2]int {
	ranges := make([][2]int, t)
	base := n / t
	rem := n % t
	start := 0
	for i := 0; i < t; i++ {
		size := base
		if i < rem {
			size++
		}
		ranges[i] = [2]int{start, start + size}
		start += size
	}
	return ranges
}

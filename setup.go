package pathoram

import (
	"context"
	"errors"

	"github.com/fenwick-labs/pathoram/workerpool"
)

// ErrTooManyBlocks is returned by Setup/ParallelSetup when the caller
// supplies more blocks than the declared capacity N.
var ErrTooManyBlocks = errors.New("pathoram: too many blocks for declared capacity")

// Setup performs the one-time initial load of blocks into the ORAM. It
// is equivalent to ParallelSetup with a single worker: every block is
// assigned a random leaf, pushed into the stash, and the whole tree's
// bucket-id range is marked cached before a single serial eviction packs
// the stash into the tree. Calling Setup (or ParallelSetup) a second time
// on the same Client is a programmer error and panics.
func (c *Client) Setup(ctx context.Context, blocks []Block) error {
	return c.setup(ctx, nil, blocks, 1)
}

// ParallelSetup is Setup, but fans the position-map assignment and stash
// loading out across workers via pool. blocks is partitioned into t
// contiguous ranges, one per worker; each worker draws random leaves and
// pushes its range's blocks into the stash, guarded by Client's internal
// mutex since Read/Write/Evict assume single-threaded access but setup is
// explicitly allowed to fan out. A single serial eviction runs after every
// worker has joined.
func (c *Client) ParallelSetup(ctx context.Context, pool workerpool.Pool, blocks []Block, t int) error {
	if t <= 0 {
		panic("pathoram: ParallelSetup: t must be positive")
	}
	return c.setup(ctx, pool, blocks, t)
}

func (c *Client) setup(ctx context.Context, pool workerpool.Pool, blocks []Block, t int) error {
	if c.state != stateConstructed {
		panic("pathoram: Setup called twice")
	}
	if len(blocks) > c.cfg.N {
		return ErrTooManyBlocks
	}

	ranges := partition(len(blocks), t)

	assign := func(_ context.Context, worker int) error {
		lo, hi := ranges[worker][0], ranges[worker][1]
		for i := lo; i < hi; i++ {
			b := blocks[i]
			leaf := randomLeaf(c.geo)

			c.posMap.Set(b.Key, leaf)

			c.stashMu.Lock()
			c.stash.Push(Block{Key: b.Key, Value: append([]byte(nil), b.Value...)})
			c.stashMu.Unlock()
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

	// Every worker's writes touch the whole tree once the subsequent
	// eviction runs, so rather than reconstruct the source's narrower
	// per-worker cache-range bookkeeping (which only makes sense under a
	// sequential, non-random leaf assignment scheme it never actually
	// specifies), every setup path simply marks the entire bucket-id
	// space cached — exactly what the documented sequential-setup
	// behavior already does ("C initialized to the full set of 2N-1
	// bucket ids"), so parallel setup converges to the same invariant.
	c.cache.AddRange(0, uint64(c.geo.NumNodes))

	pages, err := c.evictOnce(true)
	if err != nil {
		return err
	}
	if len(pages) > 0 {
		if err := c.channel.WriteBuckets(ctx, pages); err != nil {
			return errChannelFailure("write", err)
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

package pathoram

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// PositionMap is the client-held mapping from logical key to its
// currently assigned leaf (component D). It is held entirely in client
// RAM: this repo does not implement access recursion for the position
// map (spec Non-goal).
type PositionMap struct {
	mu sync.Mutex
	m  map[uint32]int
	g  Geometry
}

// NewPositionMap returns an empty position map for a tree of the given
// geometry.
func NewPositionMap(g Geometry) *PositionMap {
	return &PositionMap{m: make(map[uint32]int), g: g}
}

// Get returns the leaf currently assigned to key, if any.
func (p *PositionMap) Get(key uint32) (leaf int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	leaf, ok = p.m[key]
	return
}

// Set assigns key to leaf directly, without drawing fresh randomness.
// Used by parallel setup workers, which generate the random leaf
// themselves so that the mutex is only held for the map write.
func (p *PositionMap) Set(key uint32, leaf int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = leaf
}

// AssignRandom draws a uniformly random leaf in [0, N) using a
// cryptographically seeded PRNG and assigns it to key. The PRNG must be
// indistinguishable from uniform to the server: a predictable PRNG
// breaks the obliviousness argument, so this always goes through
// crypto/rand rather than math/rand.
func (p *PositionMap) AssignRandom(key uint32) int {
	leaf := randomLeaf(p.g)
	p.Set(key, leaf)
	return leaf
}

// Size returns the number of keys with an assigned position.
func (p *PositionMap) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// randomLeaf draws a single uniformly random leaf index in [0, g.N).
func randomLeaf(g Geometry) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(g.N)))
	if err != nil {
		// crypto/rand is only documented to fail if the underlying OS
		// entropy source is broken; there is no meaningful way to
		// continue serving oblivious accesses at that point.
		panic("pathoram: crypto/rand failed: " + err.Error())
	}
	return int(n.Int64())
}

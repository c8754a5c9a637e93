package pathoram

// Stash is the client-side reservoir of blocks that have been read off a
// path but not yet written back into the tree (component E). Order is not
// observable externally; this repo keeps it as a plain slice and relies on
// the removal patterns documented below to keep mid-scan deletion safe.
type Stash struct {
	blocks []Block
}

// NewStash returns an empty stash.
func NewStash() *Stash {
	return &Stash{}
}

// Push appends a block to the stash.
func (s *Stash) Push(b Block) {
	s.blocks = append(s.blocks, b)
}

// Len returns the number of blocks currently held.
func (s *Stash) Len() int {
	return len(s.blocks)
}

// FindByKey returns the index of the block with the given key, or -1 if
// none is present.
func (s *Stash) FindByKey(key uint32) int {
	for i, b := range s.blocks {
		if b.Key == key {
			return i
		}
	}
	return -1
}

// At returns the block at index i.
func (s *Stash) At(i int) Block {
	return s.blocks[i]
}

// Set overwrites the block at index i in place. Used by Write to mutate
// the stash entry directly rather than a by-value loop copy — the source
// bug (spec Design Notes, "Open question") modified a by-value loop
// variable and never wrote the change back; this never iterates by value
// when mutation is intended.
func (s *Stash) Set(i int, b Block) {
	s.blocks[i] = b
}

// RemoveAt removes the block at index i using swap-with-last, so that a
// caller scanning the stash by index can remove the current element and
// continue from the same index without skipping the block that was
// swapped into its place — the caller must re-examine index i rather than
// advancing when it removes, which is exactly what eviction's scan does.
func (s *Stash) RemoveAt(i int) {
	last := len(s.blocks) - 1
	s.blocks[i] = s.blocks[last]
	s.blocks = s.blocks[:last]
}

// All returns a copy of the current stash contents. Intended for tests and
// for the oblivious-traffic/position-map-invariant properties, which need
// to inspect stash membership without affecting eviction behavior.
func (s *Stash) All() []Block {
	out := make([]Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// Package oramlb implements Path ORAM with Large Buckets: the same
// position-map/stash/path-eviction algorithm as the root package, except
// the server never sees individual buckets. Every LPP-height subtree of
// the underlying tree is packed into one "large bucket" page, so a path
// read or eviction write-back touches Lv = ceil((L+1)/LPP) pages instead
// of L+1.
package oramlb

import (
	"math/bits"

	"github.com/fenwick-labs/pathoram"
)

// Geometry describes the virtual tree of large buckets layered over an
// underlying pathoram.Geometry. LPP is the packing parameter: each large
// bucket holds 2^LPP-1 small buckets, one per node of an LPP-height
// subtree of the original tree.
type Geometry struct {
	Inner pathoram.Geometry
	LPP   int
	Lv    int // virtual tree height: ceil((L+1)/LPP)
}

// NewGeometry computes the virtual tree geometry for an underlying Path
// ORAM geometry packed with the given LPP. LPP must be positive and
// small enough that 1<<LPP doesn't overflow; values beyond the teens are
// not realistic packing parameters and aren't guarded against further.
func NewGeometry(inner pathoram.Geometry, lpp int) Geometry {
	if lpp <= 0 {
		panic("oramlb: NewGeometry: LPP must be positive")
	}
	lv := (inner.Height + 1 + lpp - 1) / lpp
	return Geometry{Inner: inner, LPP: lpp, Lv: lv}
}

// BucketsPerPage is the number of small buckets packed into one large
// bucket page: 2^LPP - 1.
func (g Geometry) BucketsPerPage() int {
	return (1 << uint(g.LPP)) - 1
}

// virtualNodesBefore returns the number of virtual-tree nodes at virtual
// levels [0, v): the large-bucket tree is 2^LPP-ary (each large bucket
// packs an LPP-deep binary subtree, giving it 2^LPP children), so level i
// holds 2^(LPP*i) nodes, not 2^i as a plain binary tree would.
func (g Geometry) virtualNodesBefore(v int) uint64 {
	var sum uint64
	for i := 0; i < v; i++ {
		sum += uint64(1) << uint(g.LPP*i)
	}
	return sum
}

// vnodeLevelOf locates the virtual level containing vid in the 2^LPP-ary
// virtual tree, along with the count of ids at lower levels (i.e.
// virtualNodesBefore(level)), by walking levels outward until vid falls
// within the level's span. Lv stays small enough in practice (a handful
// of bands) that this is cheaper and clearer than a closed-form inverse.
func (g Geometry) vnodeLevelOf(vid uint64) (level int, before uint64) {
	var cum uint64
	for v := 0; ; v++ {
		count := uint64(1) << uint(g.LPP*v)
		if vid <= cum+count {
			return v, cum
		}
		cum += count
	}
}

// Transform maps a 1-based original bucket id (root == 1) to the virtual
// bucket id that holds it and its offset within that virtual bucket's
// packed subtree. It is one-to-one on [1, 2^(L+1)-1], and Untransform
// inverts it. It does not reach every (vid, offset) pair: it emits vids of
// virtual levels [0, Lv-1] only, and when L+1 is not a multiple of LPP the
// pages of the deepest band leave their deeper offsets unused.
func (g Geometry) Transform(b uint64) (vid uint64, offset int) {
	if b == 0 {
		panic("oramlb: Transform: bucket id must be 1-based (root == 1)")
	}
	nodeLevel := log2Floor(b)
	vnodeLevel := nodeLevel / g.LPP
	subtreeLevel := nodeLevel % g.LPP

	h := b - (uint64(1) << uint(nodeLevel))
	group := h >> uint(subtreeLevel)
	remainder := h & ((uint64(1) << uint(subtreeLevel)) - 1)

	vid = g.virtualNodesBefore(vnodeLevel) + group + 1
	offset = int((uint64(1)<<uint(subtreeLevel) - 1) + remainder)
	return vid, offset
}

// Untransform is the inverse of Transform: given a virtual bucket id and
// an offset within its packed subtree, recover the original, 1-based
// bucket id.
func (g Geometry) Untransform(vid uint64, offset int) uint64 {
	vnodeLevel, before := g.vnodeLevelOf(vid)
	group := vid - before - 1

	subtreeLevel := log2Floor(uint64(offset) + 1)
	r := uint64(offset) - ((uint64(1) << uint(subtreeLevel)) - 1)

	nodeLevel := vnodeLevel*g.LPP + subtreeLevel
	h := group<<uint(subtreeLevel) + r
	return (uint64(1) << uint(nodeLevel)) + h
}

// TotalVirtualNodes returns the number of large-bucket ids in the
// virtual tree, 1-based (root == 1): the sum of 2^(LPP*v) over every
// virtual level v in [0, Lv], since the virtual tree is 2^LPP-ary rather
// than binary.
func (g Geometry) TotalVirtualNodes() int {
	return int(g.virtualNodesBefore(g.Lv + 1))
}

// VirtualLevelRange returns the inclusive [low, high] virtual-bucket-id
// range of virtual level v, where v == 0 is the virtual root and v == Lv-1
// is the deepest level Transform emits (level Lv is also numbered, and is
// counted by TotalVirtualNodes). Virtual ids are 1-based (the root is vid 1,
// matching Transform's convention) over a 2^LPP-ary tree, so level v
// spans [virtualNodesBefore(v)+1, virtualNodesBefore(v+1)] — not the
// binary-tree range [2^v, 2^(v+1)-1], which only holds 2^LPP == 2.
func (g Geometry) VirtualLevelRange(v int) (low, high uint64) {
	low = g.virtualNodesBefore(v) + 1
	high = g.virtualNodesBefore(v + 1)
	return
}

// VirtualPath maps an original, 0-based path (as returned by
// pathoram.Geometry.PathToLeaf) to the deduplicated, order-preserving
// sequence of virtual bucket ids it touches.
func (g Geometry) VirtualPath(originalPath []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(originalPath))
	out := make([]uint64, 0, g.Lv+1)
	for _, b := range originalPath {
		vid, _ := g.Transform(b + 1) // convert to 1-based at the boundary
		if _, ok := seen[vid]; ok {
			continue
		}
		seen[vid] = struct{}{}
		out = append(out, vid)
	}
	return out
}

func log2Floor(x uint64) int {
	if x == 0 {
		panic("oramlb: log2Floor: argument must be positive")
	}
	return bits.Len64(x) - 1
}

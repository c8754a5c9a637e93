package oramlb

import (
	"testing"

	"github.com/fenwick-labs/pathoram"
)

// TestTransformBijection covers the tree-geometry bijection property
// (S5): for every original bucket id in [1, 2^(L+1)-1], Transform yields
// a unique (vid, offset) pair and Untransform recovers the original id.
func TestTransformBijection(t *testing.T) {
	inner := pathoram.NewGeometry(1024)
	g := NewGeometry(inner, 4)

	total := uint64(1)<<uint(inner.Height+1) - 1
	seen := make(map[[2]uint64]uint64)

	for b := uint64(1); b <= total; b++ {
		vid, offset := g.Transform(b)
		key := [2]uint64{vid, uint64(offset)}
		if other, ok := seen[key]; ok {
			t.Fatalf("collision: ids %d and %d both map to (vid=%d, offset=%d)", other, b, vid, offset)
		}
		seen[key] = b

		got := g.Untransform(vid, offset)
		if got != b {
			t.Fatalf("Untransform(Transform(%d)) = %d, want %d", b, got, b)
		}
	}
}

// TestTransformRoot covers the explicit root case the design notes call
// out: bucket id 1 (the tree root, 1-based) must map cleanly.
func TestTransformRoot(t *testing.T) {
	inner := pathoram.NewGeometry(1024)
	g := NewGeometry(inner, 4)

	vid, offset := g.Transform(1)
	if vid != 1 || offset != 0 {
		t.Fatalf("Transform(1) = (%d, %d), want (1, 0)", vid, offset)
	}
	if got := g.Untransform(vid, offset); got != 1 {
		t.Fatalf("Untransform(1, 0) = %d, want 1", got)
	}
}

func TestTransformPanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Transform(0) to panic: bucket ids are 1-based")
		}
	}()
	inner := pathoram.NewGeometry(1024)
	g := NewGeometry(inner, 4)
	g.Transform(0)
}

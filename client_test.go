package pathoram

import (
	"bytes"
	"context"
	"testing"

	"github.com/fenwick-labs/pathoram/crypto"
	"github.com/fenwick-labs/pathoram/transport"
	"github.com/fenwick-labs/pathoram/workerpool"
)

func newTestClient(t *testing.T, n, z, valueSize int) (*Client, *transport.MemoryChannel) {
	t.Helper()

	cipher, err := crypto.NewAESGCM(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}
	pageSize := cipher.Overhead() + BucketSize(z, valueSize)
	channel := transport.NewMemoryChannel(pageSize)

	client, err := New(ClientConfig{N: n, Z: z, ValueSize: valueSize}, channel, cipher)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, channel
}

func keyValue(key uint32, valueSize int) []byte {
	v := make([]byte, valueSize)
	v[0] = byte(key)
	v[1] = byte(key >> 8)
	v[2] = byte(key >> 16)
	v[3] = byte(key >> 24)
	return v
}

// TestS1BasicReadAfterSetup covers scenario S1 from the testable
// properties: after setup and an eviction, a previously inserted key
// reads back its original payload.
func TestS1BasicReadAfterSetup(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, 1024, 4, 8)

	blocks := make([]Block, 101)
	for i := range blocks {
		blocks[i] = Block{Key: uint32(i), Value: keyValue(uint32(i), 8)}
	}
	if err := client.Setup(ctx, blocks); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := client.Evict(ctx); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	got, err := client.Read(ctx, 42)
	if err != nil {
		t.Fatalf("Read(42): %v", err)
	}
	if !bytes.Equal(got, keyValue(42, 8)) {
		t.Errorf("Read(42) = %x, want %x", got, keyValue(42, 8))
	}
}

// TestS2WriteThenRead covers scenario S2: a write is visible to a
// subsequent read, and an untouched key's value survives the write.
func TestS2WriteThenRead(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, 1024, 4, 8)

	blocks := make([]Block, 101)
	for i := range blocks {
		blocks[i] = Block{Key: uint32(i), Value: keyValue(uint32(i), 8)}
	}
	if err := client.Setup(ctx, blocks); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	newValue := bytes.Repeat([]byte{0xAA}, 8)
	if err := client.Write(ctx, 10, newValue); err != nil {
		t.Fatalf("Write(10): %v", err)
	}
	if err := client.Evict(ctx); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	got, err := client.Read(ctx, 10)
	if err != nil {
		t.Fatalf("Read(10): %v", err)
	}
	if !bytes.Equal(got, newValue) {
		t.Errorf("Read(10) = %x, want %x", got, newValue)
	}

	if err := client.Evict(ctx); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	got, err = client.Read(ctx, 11)
	if err != nil {
		t.Fatalf("Read(11): %v", err)
	}
	if !bytes.Equal(got, keyValue(11, 8)) {
		t.Errorf("Read(11) = %x, want %x", got, keyValue(11, 8))
	}
}

// TestS3RepeatedReadsNoOverflow covers scenario S3: reading every key
// twice in a row never overflows the stash and always returns the
// originally inserted payload.
func TestS3RepeatedReadsNoOverflow(t *testing.T) {
	ctx := context.Background()
	n, z, valueSize := 16, 4, 4
	client, _ := newTestClient(t, n, z, valueSize)

	blocks := make([]Block, n)
	for i := range blocks {
		blocks[i] = Block{Key: uint32(i), Value: keyValue(uint32(i), valueSize)}
	}
	if err := client.Setup(ctx, blocks); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	for pass := 0; pass < 2; pass++ {
		for i := 0; i < n; i++ {
			got, err := client.Read(ctx, uint32(i))
			if err != nil {
				t.Fatalf("pass %d, Read(%d): %v", pass, i, err)
			}
			if !bytes.Equal(got, keyValue(uint32(i), valueSize)) {
				t.Errorf("pass %d, Read(%d) = %x, want %x", pass, i, got, keyValue(uint32(i), valueSize))
			}
			if err := client.Evict(ctx); err != nil {
				t.Fatalf("pass %d, Evict after %d: %v", pass, i, err)
			}
			if client.StashSize() > client.cfg.MaxStash {
				t.Fatalf("pass %d: stash overflowed: %d > %d", pass, client.StashSize(), client.cfg.MaxStash)
			}
		}
	}
}

// TestS4ParallelSetup covers scenario S4: after a parallel setup with
// T=4 workers, every inserted key reads back its original payload.
func TestS4ParallelSetup(t *testing.T) {
	ctx := context.Background()
	n, z, valueSize := 1024, 4, 8
	client, _ := newTestClient(t, n, z, valueSize)

	blocks := make([]Block, n)
	for i := range blocks {
		blocks[i] = Block{Key: uint32(i), Value: keyValue(uint32(i), valueSize)}
	}
	pool := workerpool.NewFixedPool(4)
	if err := client.ParallelSetup(ctx, pool, blocks, 4); err != nil {
		t.Fatalf("ParallelSetup: %v", err)
	}

	for i := 0; i < n; i++ {
		got, err := client.Read(ctx, uint32(i))
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if !bytes.Equal(got, keyValue(uint32(i), valueSize)) {
			t.Errorf("Read(%d) = %x, want %x", i, got, keyValue(uint32(i), valueSize))
		}
		if err := client.Evict(ctx); err != nil {
			t.Fatalf("Evict after %d: %v", i, err)
		}
	}
}

// TestS6UnknownKeyNotFound covers scenario S6: reading a key that was
// never inserted returns ErrKeyNotFound, and the client remains usable
// afterwards.
func TestS6UnknownKeyNotFound(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, 1024, 4, 8)

	blocks := make([]Block, 10)
	for i := range blocks {
		blocks[i] = Block{Key: uint32(i), Value: keyValue(uint32(i), 8)}
	}
	if err := client.Setup(ctx, blocks); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	if _, err := client.Read(ctx, 9999); err != ErrKeyNotFound {
		t.Fatalf("Read(9999) = %v, want ErrKeyNotFound", err)
	}
	if err := client.Evict(ctx); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	got, err := client.Read(ctx, 3)
	if err != nil {
		t.Fatalf("Read(3) after negative lookup: %v", err)
	}
	if !bytes.Equal(got, keyValue(3, 8)) {
		t.Errorf("Read(3) = %x, want %x", got, keyValue(3, 8))
	}
}

// TestPositionMapInvariant checks that after a sequence of writes and
// evictions, every key is findable either in the stash or in a bucket on
// the path to its currently assigned leaf.
func TestPositionMapInvariant(t *testing.T) {
	ctx := context.Background()
	n, z, valueSize := 256, 4, 8
	client, channel := newTestClient(t, n, z, valueSize)

	blocks := make([]Block, 50)
	for i := range blocks {
		blocks[i] = Block{Key: uint32(i), Value: keyValue(uint32(i), valueSize)}
	}
	if err := client.Setup(ctx, blocks); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	for i := 0; i < 50; i++ {
		if err := client.Write(ctx, uint32(i), keyValue(uint32(i), valueSize)); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
		if i%5 == 4 {
			if err := client.Evict(ctx); err != nil {
				t.Fatalf("Evict: %v", err)
			}
		}
	}
	if err := client.Evict(ctx); err != nil {
		t.Fatalf("final Evict: %v", err)
	}

	cipher, _ := crypto.NewAESGCM(make([]byte, 32))
	pages := channel.Snapshot()

	for key := uint32(0); key < 50; key++ {
		if client.stash.FindByKey(key) != -1 {
			continue
		}
		leaf, ok := client.posMap.Get(key)
		if !ok {
			t.Fatalf("key %d has no position after setup", key)
		}
		path := client.geo.PathToLeaf(leaf, nil)

		found := false
		for _, id := range path {
			pt, err := cipher.DecryptBucket(pages[id])
			if err != nil {
				t.Fatalf("decrypt bucket %d: %v", id, err)
			}
			b, err := unmarshalBucket(pt, z, valueSize)
			if err != nil {
				t.Fatalf("unmarshal bucket %d: %v", id, err)
			}
			for i := 0; i < b.Fill; i++ {
				if b.Slots[i].Key == key {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("key %d is neither in the stash nor on its path", key)
		}
	}
}

// TestStashBound enforces the stash-bound property: after any
// 2*Z*L back-to-back accesses (each followed by an eviction) following
// setup, the stash never exceeds 2*Z*L entries.
func TestStashBound(t *testing.T) {
	ctx := context.Background()
	n, z, valueSize := 1024, 4, 8
	client, _ := newTestClient(t, n, z, valueSize)

	blocks := make([]Block, 200)
	for i := range blocks {
		blocks[i] = Block{Key: uint32(i), Value: keyValue(uint32(i), valueSize)}
	}
	if err := client.Setup(ctx, blocks); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	bound := 2 * z * client.Height()
	ops := bound
	for i := 0; i < ops; i++ {
		key := uint32(i % 200)
		if _, err := client.AccessAndEvict(ctx, key, nil); err != nil && err != ErrKeyNotFound {
			t.Fatalf("access %d: %v", i, err)
		}
		if client.StashSize() > bound {
			t.Fatalf("stash overflowed at op %d: %d > %d", i, client.StashSize(), bound)
		}
	}
}

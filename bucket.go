package pathoram

import "fmt"

// Bucket is a fixed-capacity container of Z blocks plus a fill count. Slots
// at or beyond Fill are ignored on read but are still serialized: the wire
// size of a bucket never depends on how full it is, so traffic observed by
// the server is input-oblivious.
type Bucket struct {
	Slots []Block
	Fill  int
}

// newEmptyBucket returns a bucket with Z dummy slots and Fill == 0.
func newEmptyBucket(z, valueSize int) Bucket {
	slots := make([]Block, z)
	for i := range slots {
		slots[i] = emptyBlock(valueSize)
	}
	return Bucket{Slots: slots, Fill: 0}
}

// bucketSize returns the wire size of a bucket with capacity z and payload
// width valueSize: one fill byte followed by z serialized blocks.
func bucketSize(z, valueSize int) int {
	return 1 + z*blockSize(valueSize)
}

// marshalBucket serializes b to exactly bucketSize(z, valueSize) bytes. z
// must equal len(b.Slots); this is a programmer invariant, not a runtime
// one, since buckets are always constructed by this package.
func marshalBucket(b Bucket, valueSize int) []byte {
	z := len(b.Slots)
	out := make([]byte, bucketSize(z, valueSize))
	out[0] = byte(b.Fill)
	off := 1
	vs := blockSize(valueSize)
	for i := 0; i < z; i++ {
		marshalBlock(b.Slots[i], valueSize, out[off:off+vs])
		off += vs
	}
	return out
}

// unmarshalBucket is the byte-for-byte inverse of marshalBucket. A short
// input is a fatal parse error; the codec performs no other validation.
func unmarshalBucket(in []byte, z, valueSize int) (Bucket, error) {
	want := bucketSize(z, valueSize)
	if len(in) != want {
		return Bucket{}, fmt.Errorf("pathoram: short bucket: got %d bytes, want %d", len(in), want)
	}
	fill := int(in[0])
	slots := make([]Block, z)
	off := 1
	vs := blockSize(valueSize)
	for i := 0; i < z; i++ {
		b, err := unmarshalBlock(in[off:off+vs], valueSize)
		if err != nil {
			return Bucket{}, err
		}
		slots[i] = b
		off += vs
	}
	return Bucket{Slots: slots, Fill: fill}, nil
}

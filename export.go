package pathoram

// This file re-exports the bucket wire codec for the oramlb package,
// which packs whole subtrees of these same small buckets into one large
// page and has no business reimplementing the format.

// BucketSize returns the wire size of a bucket with capacity z and
// payload width valueSize.
func BucketSize(z, valueSize int) int { return bucketSize(z, valueSize) }

// NewEmptyBucket returns a bucket with z dummy slots and Fill == 0.
func NewEmptyBucket(z, valueSize int) Bucket { return newEmptyBucket(z, valueSize) }

// MarshalBucket serializes b to exactly BucketSize(len(b.Slots), valueSize) bytes.
func MarshalBucket(b Bucket, valueSize int) []byte { return marshalBucket(b, valueSize) }

// UnmarshalBucket is the byte-for-byte inverse of MarshalBucket.
func UnmarshalBucket(in []byte, z, valueSize int) (Bucket, error) {
	return unmarshalBucket(in, z, valueSize)
}

// RandomLeaf draws a single uniformly random leaf index in [0, g.N)
// using crypto/rand, the same way the client draws fresh leaves on every
// access. Exported so the oramlb variant can reuse the same randomness
// discipline rather than reimplementing it against math/rand.
func RandomLeaf(g Geometry) int { return randomLeaf(g) }

package oramlb

import (
	"fmt"

	"github.com/fenwick-labs/pathoram"
	"github.com/fenwick-labs/pathoram/crypto"
)

// PackPage encrypts each of buckets individually, in order, and
// concatenates the resulting ciphertexts into one large-bucket page. The
// small buckets are encrypted independently rather than the page as a
// whole, per the write-back discipline; UnpackPage decrypts every one of
// them.
func PackPage(c crypto.Cipher, buckets []pathoram.Bucket, valueSize int) ([]byte, error) {
	page := make([]byte, 0)
	for _, b := range buckets {
		pt := pathoram.MarshalBucket(b, valueSize)
		ct, err := c.EncryptBucket(pt)
		if err != nil {
			return nil, err
		}
		page = append(page, ct...)
	}
	return page, nil
}

// UnpackPage is the inverse of PackPage. bucketCipherLen is the fixed
// per-small-bucket ciphertext length (every small bucket plaintext has
// the same size, so this is constant across a Client's lifetime); count
// is the number of small buckets packed into page, i.e. BucketsPerPage.
func UnpackPage(c crypto.Cipher, page []byte, bucketCipherLen, count, z, valueSize int) ([]pathoram.Bucket, error) {
	if len(page) != bucketCipherLen*count {
		return nil, fmt.Errorf("oramlb: page has %d bytes, want %d", len(page), bucketCipherLen*count)
	}
	buckets := make([]pathoram.Bucket, count)
	for i := 0; i < count; i++ {
		ct := page[i*bucketCipherLen : (i+1)*bucketCipherLen]
		pt, err := c.DecryptBucket(ct)
		if err != nil {
			return nil, pathoram.ErrCryptoFailure
		}
		b, err := pathoram.UnmarshalBucket(pt, z, valueSize)
		if err != nil {
			return nil, fmt.Errorf("oramlb: %w", pathoram.ErrCryptoFailure)
		}
		buckets[i] = b
	}
	return buckets, nil
}

// bucketCipherLen probes the cipher with one empty-bucket plaintext to
// determine the deterministic per-small-bucket ciphertext length, the
// same probing technique pathoram.New uses to validate a channel's page
// size against the cipher's output length.
func bucketCipherLen(c crypto.Cipher, z, valueSize int) (int, error) {
	probe := pathoram.MarshalBucket(pathoram.NewEmptyBucket(z, valueSize), valueSize)
	ct, err := c.EncryptBucket(probe)
	if err != nil {
		return 0, fmt.Errorf("oramlb: probe encryption failed: %w", err)
	}
	return len(ct), nil
}

// Package crypto provides the per-bucket encryption adapter the ORAM
// client uses. The client never depends on a concrete cipher, only on
// the Cipher interface below.
package crypto

import "errors"

// ErrDecryptionFailed is returned when ciphertext fails to authenticate
// or has an unexpected length. It is fatal to the ORAM client: once
// raised, the client is left unusable.
var ErrDecryptionFailed = errors.New("crypto: decryption failed")

// Cipher encrypts and decrypts whole bucket pages. Ciphertext length must
// be a pure, deterministic function of plaintext length — the encrypt
// path never emits traffic whose size depends on slot contents beyond
// what the bucket codec already fixes.
type Cipher interface {
	// EncryptBucket encrypts one serialized bucket's plaintext bytes.
	EncryptBucket(plaintext []byte) (ciphertext []byte, err error)

	// DecryptBucket is the inverse of EncryptBucket. It fails the whole
	// operation on authentication or length mismatch.
	DecryptBucket(ciphertext []byte) (plaintext []byte, err error)

	// Overhead returns CiphertextLen(n) - n for this cipher: the number
	// of extra bytes added regardless of plaintext content.
	Overhead() int
}

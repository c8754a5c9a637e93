package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	aesKeySize   = 32 // AES-256
	aesNonceSize = 12 // standard GCM nonce size
)

// AESGCM provides AES-256-GCM encryption with a random nonce per call.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM returns a Cipher using AES-256-GCM with the given 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("crypto: AES-GCM key must be %d bytes, got %d", aesKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: create GCM: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// EncryptBucket returns nonce || ciphertext || tag.
func (a *AESGCM) EncryptBucket(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aesNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return a.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBucket parses nonce || ciphertext || tag and authenticates it.
func (a *AESGCM) DecryptBucket(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aesNonceSize+a.aead.Overhead() {
		return nil, ErrDecryptionFailed
	}
	nonce, ct := ciphertext[:aesNonceSize], ciphertext[aesNonceSize:]
	plaintext, err := a.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Overhead returns the nonce size plus the GCM tag size.
func (a *AESGCM) Overhead() int {
	return aesNonceSize + a.aead.Overhead()
}

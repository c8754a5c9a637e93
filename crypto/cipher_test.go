package crypto

import (
	"bytes"
	"testing"
)

func TestAESGCMRoundTrip(t *testing.T) {
	c, err := NewAESGCM(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ct, err := c.EncryptBucket(plaintext)
	if err != nil {
		t.Fatalf("EncryptBucket: %v", err)
	}
	if len(ct) != len(plaintext)+c.Overhead() {
		t.Fatalf("ciphertext length %d, want %d", len(ct), len(plaintext)+c.Overhead())
	}

	got, err := c.DecryptBucket(ct)
	if err != nil {
		t.Fatalf("DecryptBucket: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestAESGCMTamperedCiphertextFails(t *testing.T) {
	c, _ := NewAESGCM(make([]byte, 32))
	ct, _ := c.EncryptBucket([]byte("hello"))
	ct[len(ct)-1] ^= 0xFF

	if _, err := c.DecryptBucket(ct); err != ErrDecryptionFailed {
		t.Fatalf("DecryptBucket(tampered) = %v, want ErrDecryptionFailed", err)
	}
}

func TestCBCRoundTrip(t *testing.T) {
	key := make([]byte, 64)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewCBC(key)
	if err != nil {
		t.Fatalf("NewCBC: %v", err)
	}

	for _, n := range []int{0, 1, 15, 16, 17, 1000} {
		plaintext := make([]byte, n)
		for i := range plaintext {
			plaintext[i] = byte(i)
		}

		ct, err := c.EncryptBucket(plaintext)
		if err != nil {
			t.Fatalf("EncryptBucket(n=%d): %v", n, err)
		}
		if len(ct) != c.CiphertextLen(n) {
			t.Fatalf("n=%d: ciphertext length %d, want %d", n, len(ct), c.CiphertextLen(n))
		}

		got, err := c.DecryptBucket(ct)
		if err != nil {
			t.Fatalf("DecryptBucket(n=%d): %v", n, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("n=%d: got %x, want %x", n, got, plaintext)
		}
	}
}

func TestCBCTamperedMACFails(t *testing.T) {
	key := make([]byte, 64)
	c, _ := NewCBC(key)
	ct, _ := c.EncryptBucket([]byte("some bucket plaintext"))
	ct[0] ^= 0xFF

	if _, err := c.DecryptBucket(ct); err != ErrDecryptionFailed {
		t.Fatalf("DecryptBucket(tampered) = %v, want ErrDecryptionFailed", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a := DeriveKey("hunter2", 32)
	b := DeriveKey("hunter2", 32)
	if !bytes.Equal(a, b) {
		t.Fatal("DeriveKey is not deterministic for the same password")
	}

	c := DeriveKey("different", 32)
	if bytes.Equal(a, c) {
		t.Fatal("DeriveKey produced the same key for different passwords")
	}
}

package crypto

import (
	"crypto/sha1"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Salt is fixed rather than random because the derived key must be
// reproducible from the passphrase alone across client restarts.
const pbkdf2Salt = "pathoram-static-salt-v1"

const pbkdf2Iterations = 4096

// DeriveKey derives a keyLen-byte key from password via PBKDF2-HMAC-SHA1.
func DeriveKey(password string, keyLen int) []byte {
	return pbkdf2.Key([]byte(password), []byte(pbkdf2Salt), pbkdf2Iterations, keyLen, sha1.New)
}

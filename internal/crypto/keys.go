package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Iterations = 100000

// RandomToken returns n cryptographically random bytes, hex encoded.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length %d: must be positive", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// DeriveKey stretches a passphrase into a KeyLength key with PBKDF2-SHA256.
func DeriveKey(passphrase, salt string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(salt), pbkdf2Iterations, KeyLength, sha256.New)
}

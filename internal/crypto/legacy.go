package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strings"
)

// legacyDecrypt reads tokens issued before per-token IVs existed: a bare
// hex ciphertext encrypted under an all-zero IV. Read-only compatibility;
// nothing in this package produces such tokens anymore.
//
// Deprecated: reconnecting the affected connection re-encrypts its token
// in the current format.
func legacyDecrypt(block cipher.Block, token string) ([]byte, error) {
	ciphertext, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed legacy token", ErrDecryptionFailed)
	}
	zeroIV := make([]byte, aes.BlockSize)
	return decryptCBC(block, zeroIV, ciphertext)
}

// IsLegacyToken reports whether token uses the zero-IV format.
func IsLegacyToken(token string) bool {
	return !strings.Contains(token, tokenSeparator)
}

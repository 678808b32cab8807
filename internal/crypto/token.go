package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeyLength is the AES-256 key size. Longer keys are truncated to it.
const KeyLength = 32

const tokenSeparator = ":"

var (
	ErrInvalidKey       = errors.New("encryption key must be at least 32 bytes")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Encrypt encrypts plaintext with AES-256-CBC under a fresh random IV and
// returns the token "hex(iv):hex(ciphertext)".
func Encrypt(plaintext, key []byte) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	return encryptWithIV(plaintext, key, iv)
}

func encryptWithIV(plaintext, key, iv []byte) (string, error) {
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + tokenSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Tokens without an IV separator are treated as
// legacy tokens and routed through legacyDecrypt.
func Decrypt(token string, key []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}

	ivHex, ctHex, found := strings.Cut(token, tokenSeparator)
	if !found {
		return legacyDecrypt(block, token)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: malformed iv", ErrDecryptionFailed)
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext", ErrDecryptionFailed)
	}
	return decryptCBC(block, iv, ciphertext)
}

// DecryptString is Decrypt for callers that store credentials as text.
func DecryptString(token string, key []byte) (string, error) {
	plaintext, err := Decrypt(token, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) < KeyLength {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key[:KeyLength])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return block, nil
}

func decryptCBC(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecryptionFailed)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return unpadded, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
		}
	}
	return data[:len(data)-n], nil
}

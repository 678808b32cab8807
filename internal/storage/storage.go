package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/edvin/backupvault/internal/crypto"
	"github.com/edvin/backupvault/internal/model"
)

// Namespace is the application folder every artifact is written under.
const Namespace = "BackupVault"

var (
	ErrUploadFailed        = errors.New("storage upload failed")
	ErrNotImplemented      = errors.New("storage provider not implemented")
	ErrUnsupportedProvider = errors.New("unsupported storage provider")
)

// Location is where an artifact ended up.
type Location struct {
	// Path is provider native: a Dropbox path, a Drive file id, a OneDrive
	// item path or a b2:// object URL.
	Path string
	// Size is the number of encrypted bytes stored.
	Size int64
}

// Provider writes already sealed bytes to one storage backend.
type Provider interface {
	Put(ctx context.Context, credential, folder, name string, data []byte) (string, error)
}

// Uploader seals content and hands it to the provider matching a storage
// connection.
type Uploader struct {
	providers map[string]Provider
	key       []byte
}

func NewUploader(key []byte, providers map[string]Provider) *Uploader {
	return &Uploader{providers: providers, key: key}
}

// Upload sanitizes name, serializes and encrypts content with the process
// key and stores the result under Namespace.
func (u *Uploader) Upload(ctx context.Context, conn model.StorageConnection, name string, content any) (Location, error) {
	p, ok := u.providers[conn.StorageProvider]
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, conn.StorageProvider)
	}

	credential, err := crypto.DecryptString(conn.AccessToken, u.key)
	if err != nil {
		return Location{}, fmt.Errorf("decrypt %s token: %w", conn.StorageProvider, err)
	}

	sealed, err := Seal(content, u.key)
	if err != nil {
		return Location{}, err
	}

	path, err := p.Put(ctx, credential, conn.FolderPath, crypto.SanitizeName(name), sealed)
	if err != nil {
		return Location{}, err
	}
	return Location{Path: path, Size: int64(len(sealed))}, nil
}

// Seal serializes content to canonical JSON and encrypts it. The returned
// bytes are the artifact exactly as stored.
func Seal(content any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("serialize artifact: %w", err)
	}
	token, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt artifact: %w", err)
	}
	return []byte(token), nil
}

// Open reverses Seal, decoding the artifact into v. Numbers are kept as
// json.Number when v holds untyped values.
func Open(artifact []byte, key []byte, v any) error {
	plaintext, err := crypto.Decrypt(strings.TrimSpace(string(artifact)), key)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// objectPath joins the namespace, the sanitized folder segments and name.
func objectPath(folder, name string) string {
	parts := []string{Namespace}
	for _, seg := range strings.Split(folder, "/") {
		if seg = crypto.SanitizeName(seg); seg != "" && seg != "." {
			parts = append(parts, seg)
		}
	}
	return strings.Join(append(parts, name), "/")
}

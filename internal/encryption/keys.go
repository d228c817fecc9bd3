package encryption

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// KeyProvider supplies the data key: it loads an existing key or generates
// and persists one when none exists yet.
type KeyProvider interface {
	Key(ctx context.Context) ([]byte, error)
}

// FileKeyProvider keeps a base64 key in a local file.
type FileKeyProvider struct {
	Path string
}

func (p FileKeyProvider) Key(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(p.Path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not base64: %v", ErrInvalidKey, p.Path, err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: %s holds %d bytes", ErrInvalidKey, p.Path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := writeSecret(p.Path, []byte(base64.StdEncoding.EncodeToString(key))); err != nil {
		return nil, err
	}
	return key, nil
}

// writeSecret creates the file exclusively so two processes racing on first
// start cannot both win.
func writeSecret(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return f.Close()
}

// Load builds a Cipher from the provider's key. Call once per process.
func Load(ctx context.Context, p KeyProvider) (*Cipher, error) {
	key, err := p.Key(ctx)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

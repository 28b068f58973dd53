// File: internal/services/attachment/store.go
package attachment

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Store persists uploaded bytes and returns a durable URL for them.
type Store interface {
	Save(ctx context.Context, name, mediaType string, data []byte) (string, error)
}

// FileStore writes content-addressed files under a directory that is served
// publicly at baseURL. Identical uploads share one file.
type FileStore struct {
	dir     string
	baseURL string
}

func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileStore) Save(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	file := hex.EncodeToString(sum[:]) + extensionFor(name, mediaType)
	path := filepath.Join(s.dir, file)

	if _, err := os.Stat(path); err == nil {
		return s.baseURL + "/" + file, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return s.baseURL + "/" + file, nil
}

func extensionFor(name, mediaType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 10 && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

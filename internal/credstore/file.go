package credstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileStore reads the secret from a file readable by its owner only.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	return &FileStore{filePath: filePath}, nil
}

// Read returns the file contents after trimming whitespace. Returns error if
// the file doesn't exist, is empty, or has permissions other than 0600.
func (f *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		return "", err
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, perm)
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return "", err
	}

	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("password file %s: %w", f.filePath, ErrEmpty)
	}
	return v, nil
}

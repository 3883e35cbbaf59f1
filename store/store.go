// Package store persists proof receipts.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synqronlabs/zkmail/zkvm"
)

// Extension is appended to every receipt name.
const Extension = ".bin"

var (
	// ErrNotFound is returned when no receipt exists under a name.
	ErrNotFound = errors.New("store: receipt not found")
	// ErrInvalidName is returned for names that are empty or contain a path.
	ErrInvalidName = errors.New("store: invalid receipt name")
)

// Store saves and loads receipts by name.
type Store interface {
	// Save writes the receipt and returns where it was stored.
	Save(ctx context.Context, name string, r *zkvm.Receipt) (string, error)
	Load(ctx context.Context, name string) (*zkvm.Receipt, error)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// FileStore keeps receipts as files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file a receipt name maps to.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+Extension)
}

// Save writes the receipt to a temporary file and renames it into place,
// so readers never see a partial receipt.
func (s *FileStore) Save(ctx context.Context, name string, r *zkvm.Receipt) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := r.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("store: encoding receipt: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("store: writing receipt: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("store: syncing receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}

	path := s.Path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return path, nil
}

// Load reads a receipt by name.
func (s *FileStore) Load(ctx context.Context, name string) (*zkvm.Receipt, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return ReadFile(s.Path(name))
}

// ReadFile reads a receipt file at any path.
func ReadFile(path string) (*zkvm.Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("store: %w", err)
	}
	var r zkvm.Receipt
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &r, nil
}

package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSBlobs implements Blobs over a local directory tree. It is the
// simplest faithful instance of the object-storage surface spec.md §4.3
// needs (blob existence pre-check, deletion after ingest); a deployment
// fronting S3/OSS/MinIO instead swaps in its own Blobs implementation
// without touching the manager.
type FSBlobs struct {
	root string
}

// NewFSBlobs constructs an FSBlobs rooted at dir, creating it if absent.
func NewFSBlobs(dir string) (*FSBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rag: create blob root %q: %w", dir, err)
	}
	return &FSBlobs{root: dir}, nil
}

func (b *FSBlobs) resolve(path string) (string, error) {
	full := filepath.Join(b.root, filepath.Clean("/"+path))
	if !filepathHasPrefix(full, b.root) {
		return "", fmt.Errorf("rag: blob path %q escapes storage root", path)
	}
	return full, nil
}

func filepathHasPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[:2] == ".."
}

// Exists implements Blobs.
func (b *FSBlobs) Exists(_ context.Context, path string) (bool, error) {
	full, err := b.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete implements Blobs.
func (b *FSBlobs) Delete(_ context.Context, path string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Package location maps logical index names to directories under a root.
package location

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/notesearch/internal/models"
)

// Resolver owns the mapping from index names to directories. It is safe for concurrent use.
type Resolver struct {
	root string
	temp bool
}

// New returns a resolver rooted at root. The root is created lazily by LocationOf.
func New(root string) *Resolver {
	return &Resolver{root: filepath.Clean(root)}
}

// NewTemp returns a resolver rooted at a fresh directory under os.TempDir.
// Close removes it.
func NewTemp(prefix string) (*Resolver, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, &models.StorageIOError{Op: "create temp root", Path: os.TempDir(), Err: err}
	}
	return &Resolver{root: dir, temp: true}, nil
}

// Root returns the root directory.
func (r *Resolver) Root() string {
	return r.root
}

// PathOf returns the directory for indexName without touching the filesystem.
// Names may contain "/" to nest; they must stay inside the root.
func (r *Resolver) PathOf(indexName string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(indexName))
	if indexName == "" || clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid index name %q", indexName)
	}
	return filepath.Join(r.root, clean), nil
}

// LocationOf returns the directory for indexName, creating it and any missing parents.
func (r *Resolver) LocationOf(indexName string) (string, error) {
	path, err := r.PathOf(indexName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", &models.StorageIOError{Op: "create index directory", Path: path, Err: err}
	}
	return path, nil
}

// Close removes the root of a temporary resolver. It is a no-op otherwise.
func (r *Resolver) Close() error {
	if !r.temp {
		return nil
	}
	if err := os.RemoveAll(r.root); err != nil {
		return &models.StorageIOError{Op: "remove temp root", Path: r.root, Err: err}
	}
	return nil
}

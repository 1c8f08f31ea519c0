// Package storage provides the write-once blob store for uploaded images.
// Every upload gets a fresh unique key, so no two writers ever target the
// same object and no locking is needed at this layer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is an abstraction over the uploaded-image object store.
type Store interface {
	// Put writes a blob under the given key. Keys are never reused.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get reads a blob back. Returns an error satisfying
	// errors.Is(err, ErrNotFound) when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewKey generates a fresh unique object key under the given folder,
// preserving the original file extension when it looks sane.
func NewKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 5 {
		ext = ""
	}
	return path.Join(folder, fmt.Sprintf("%s%s", uuid.NewString(), ext))
}

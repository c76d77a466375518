package metadata

import (
	"context"
	"errors"

	"github.com/maxiofs/nasfs/internal/storage"
)

// Common errors
var (
	ErrNotFound    = errors.New("file record not found")
	ErrInvalidKey  = errors.New("invalid key")
	ErrStoreClosed = errors.New("metadata store is closed")
)

// Store keeps the FileMetadata records that tie a (bucket, file id) pair to
// the storage path returned by a backend.
type Store interface {
	// Put creates or replaces the record for fm.Bucket/fm.FileID
	Put(ctx context.Context, fm *storage.FileMetadata) error

	// Get retrieves the record for a file
	Get(ctx context.Context, bucket, fileID string) (*storage.FileMetadata, error)

	// Delete removes the record for a file
	Delete(ctx context.Context, bucket, fileID string) error

	// List returns the records of one bucket, or of every bucket when bucket is empty
	List(ctx context.Context, bucket string) ([]*storage.FileMetadata, error)

	// Lifecycle
	Close() error
}

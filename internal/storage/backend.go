package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Backend defines the interface for all file storage backends
type Backend interface {
	// Save persists data (or links it, when the backend supports that) and
	// returns an opaque storage path to keep in FileMetadata.StoragePath.
	Save(ctx context.Context, bucket, fileID string, data io.Reader, opts SaveOptions) (string, error)

	// Load opens the referenced content. The caller must close the stream.
	Load(ctx context.Context, fm *FileMetadata) (io.ReadCloser, error)

	// Delete removes the referenced content and reports whether the logical
	// deletion succeeded. It does not guarantee physical removal.
	Delete(ctx context.Context, fm *FileMetadata) bool

	// PublicURL returns a directly fetchable URL, or false when the backend
	// cannot build one for this file.
	PublicURL(ctx context.Context, fm *FileMetadata, expire time.Duration) (string, bool)

	// Lifecycle
	Close() error
}

// FileMetadata identifies a stored file. Records are owned by the caller;
// backends only interpret StoragePath.
type FileMetadata struct {
	Bucket      string    `json:"bucket"`
	FileID      string    `json:"file_id"`
	FileName    string    `json:"file_name,omitempty"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveOptions carries the optional arguments of Save
type SaveOptions struct {
	PublicURL       bool
	PublicURLExpire time.Duration
}

// NewBackend creates a new storage backend based on configuration
func NewBackend(config Config, logger *logrus.Logger) (Backend, error) {
	switch config.Backend {
	case "nas", "":
		// Empty string defaults to nas
		backend, err := NewNASBackend(config.NAS, logger)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, errorf(ErrConfiguration, nil, "unsupported storage backend: %s (only 'nas' is currently supported)", config.Backend)
	}
}

// ExistingFile names a file that already lives on the NAS. Passing it to Save
// links the file instead of copying bytes. Reading it directly always fails.
type ExistingFile string

// Name returns the path of the file
func (f ExistingFile) Name() string {
	return string(f)
}

func (f ExistingFile) Read(p []byte) (int, error) {
	return 0, errorf(ErrNotFound, nil, "linked file does not exist: %s", string(f))
}

func (f ExistingFile) String() string {
	return fmt.Sprintf("ExistingFile(%s)", string(f))
}

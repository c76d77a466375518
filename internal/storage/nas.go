package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// NASBackend stores files on a mounted network filesystem. Files already on
// the NAS can be linked in place; other content is copied under
// basePath/bucket/file_id.
type NASBackend struct {
	basePath              string
	allowSymlinks         bool
	readOnly              bool
	autoCreateDirectories bool
	saveChunkSize         int
	publicURLBase         string
	logger                *logrus.Logger

	locksMu    sync.Mutex
	writeLocks map[string]*pathLock // held paths only
}

// pathLock serializes writers of one path; refs counts holders and waiters
type pathLock struct {
	mu   sync.Mutex
	refs int
}

// namedReader is implemented by *os.File and ExistingFile
type namedReader interface {
	Name() string
}

// NewNASBackend creates a NAS backend. The base path must exist and be a directory.
func NewNASBackend(cfg NASConfig, logger *logrus.Logger) (*NASBackend, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if cfg.BasePath == "" {
		return nil, errorf(ErrConfiguration, nil, "NAS base path is not configured")
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, errorf(ErrConfiguration, err, "NAS base path not accessible: %s", cfg.BasePath)
	}
	basePath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, errorf(ErrConfiguration, err, "NAS base path not accessible: %s", cfg.BasePath)
	}
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, errorf(ErrConfiguration, err, "NAS base path not accessible: %s", cfg.BasePath)
	}
	if !info.IsDir() {
		return nil, errorf(ErrConfiguration, nil, "NAS base path is not a directory: %s", cfg.BasePath)
	}

	chunkSize := cfg.SaveChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultSaveChunkSize
	}

	backend := &NASBackend{
		basePath:              basePath,
		allowSymlinks:         cfg.AllowSymlinks,
		readOnly:              cfg.ReadOnly,
		autoCreateDirectories: cfg.AutoCreateDirectories,
		saveChunkSize:         chunkSize,
		publicURLBase:         cfg.PublicURLBase,
		logger:                logger,
		writeLocks:            make(map[string]*pathLock),
	}

	logger.WithFields(logrus.Fields{
		"base_path": basePath,
		"read_only": cfg.ReadOnly,
	}).Info("Initialized NAS storage")

	return backend, nil
}

// BasePath returns the resolved NAS root
func (n *NASBackend) BasePath() string {
	return n.basePath
}

// ReadOnly reports whether the backend refuses to write or remove files
func (n *NASBackend) ReadOnly() bool {
	return n.readOnly
}

// SaveChunkSize returns the number of bytes copied per read on ingest
func (n *NASBackend) SaveChunkSize() int {
	return n.saveChunkSize
}

// Save links data when it names an existing file, otherwise copies it onto the NAS.
// The public URL options are accepted for interface parity; use PublicURL instead.
func (n *NASBackend) Save(ctx context.Context, bucket, fileID string, data io.Reader, opts SaveOptions) (string, error) {
	if data == nil {
		return "", errorf(ErrValidation, nil, "file data is required")
	}
	if source, ok := linkSource(data); ok {
		return n.link(bucket, fileID, source)
	}
	return n.ingest(ctx, bucket, fileID, data)
}

// linkSource returns the path behind data when it names a file that exists
func linkSource(data io.Reader) (string, bool) {
	named, ok := data.(namedReader)
	if !ok {
		return "", false
	}
	name := named.Name()
	if name == "" {
		return "", false
	}
	if _, err := os.Stat(name); err != nil {
		return "", false
	}
	return name, true
}

// link registers an existing NAS file without copying it
func (n *NASBackend) link(bucket, fileID, source string) (string, error) {
	absPath, err := filepath.Abs(source)
	if err != nil {
		return "", errorf(ErrValidation, err, "invalid NAS file path: %s", source)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errorf(ErrNotFound, err, "NAS file not found: %s", absPath)
		}
		return "", errorf(ErrIO, err, "failed to stat NAS file: %s", absPath)
	}
	if info.Mode()&os.ModeSymlink != 0 && !n.allowSymlinks {
		return "", errorf(ErrValidation, nil, "Symbolic links are not allowed: %s", absPath)
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errorf(ErrNotFound, err, "NAS file not found: %s", absPath)
		}
		return "", errorf(ErrIO, err, "failed to resolve NAS file: %s", absPath)
	}
	if _, ok := n.relativePath(resolved); !ok {
		return "", errorf(ErrValidation, nil, "File must be within NAS base path: %s", n.basePath)
	}

	info, err = os.Stat(resolved)
	if err != nil {
		return "", errorf(ErrNotFound, err, "NAS file not found: %s", resolved)
	}
	if !info.Mode().IsRegular() {
		return "", errorf(ErrValidation, nil, "NAS path is not a regular file: %s", resolved)
	}

	f, err := os.Open(resolved)
	if err != nil {
		if os.IsPermission(err) {
			return "", errorf(ErrPermission, err, "NAS file not readable: %s", resolved)
		}
		return "", errorf(ErrIO, err, "failed to open NAS file: %s", resolved)
	}
	f.Close()

	n.logger.WithFields(logrus.Fields{
		"bucket":  bucket,
		"file_id": fileID,
		"path":    resolved,
	}).Info("Linking existing NAS file")

	return Location{Bucket: bucket, FileID: fileID, Path: resolved}.String(), nil
}

// ingest copies data into basePath/bucket/fileID
func (n *NASBackend) ingest(ctx context.Context, bucket, fileID string, data io.Reader) (string, error) {
	if n.readOnly {
		return "", errorf(ErrValidation, nil, "Cannot create new files in read-only mode")
	}
	if err := validateName("bucket", bucket, false); err != nil {
		return "", err
	}
	if err := validateName("file id", fileID, true); err != nil {
		return "", err
	}

	bucketPath := filepath.Join(n.basePath, bucket)
	targetPath := filepath.Join(bucketPath, filepath.FromSlash(fileID))
	if _, ok := n.relativePath(targetPath); !ok {
		return "", errorf(ErrValidation, nil, "File must be within NAS base path: %s", n.basePath)
	}

	targetDir := filepath.Dir(targetPath)
	if n.autoCreateDirectories {
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return "", errorf(ErrIO, err, "failed to create bucket directory: %s", targetDir)
		}
	} else if info, err := os.Stat(targetDir); err != nil || !info.IsDir() {
		return "", errorf(ErrNotFound, err, "Bucket directory not found: %s", targetDir)
	}

	unlock := n.lock(targetPath)
	defer unlock()

	if err := n.writeFile(ctx, targetPath, data); err != nil {
		n.logger.WithFields(logrus.Fields{
			"bucket":  bucket,
			"file_id": fileID,
			"path":    targetPath,
		}).WithError(err).Error("Failed to save file to NAS")
		return "", err
	}

	n.logger.WithField("path", targetPath).Info("Created new NAS file")

	return Location{Bucket: bucket, FileID: fileID, Path: targetPath}.String(), nil
}

// writeFile copies data in saveChunkSize chunks into a temporary file next to
// target and renames it into place. On failure the temporary file is removed,
// so target is either untouched or complete.
func (n *NASBackend) writeFile(ctx context.Context, target string, data io.Reader) (err error) {
	tempFile, err := os.CreateTemp(filepath.Dir(target), ".nasfs-tmp-")
	if err != nil {
		return errorf(ErrIO, err, "failed to create temporary file")
	}
	defer func() {
		if err != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	buf := make([]byte, n.saveChunkSize)
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errorf(ErrIO, ctxErr, "save interrupted")
		}

		nr, readErr := data.Read(buf)
		if nr > 0 {
			if _, writeErr := tempFile.Write(buf[:nr]); writeErr != nil {
				return errorf(ErrIO, writeErr, "failed to write data")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errorf(ErrIO, readErr, "failed to read data")
		}
	}

	if err = tempFile.Close(); err != nil {
		return errorf(ErrIO, err, "failed to flush data")
	}
	if err = os.Chmod(tempFile.Name(), 0644); err != nil {
		return errorf(ErrIO, err, "failed to set file mode")
	}
	if err = os.Rename(tempFile.Name(), target); err != nil {
		return errorf(ErrIO, err, "failed to move file to final location")
	}

	return nil
}

// Load opens the file referenced by fm for reading
func (n *NASBackend) Load(ctx context.Context, fm *FileMetadata) (io.ReadCloser, error) {
	path, err := n.filePath(fm)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorf(ErrNotFound, err, "NAS file not found: %s", path)
		}
		return nil, errorf(ErrIO, err, "failed to stat NAS file: %s", path)
	}
	if info.Mode()&os.ModeSymlink != 0 && !n.allowSymlinks {
		return nil, errorf(ErrValidation, nil, "Symbolic links are not allowed: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		n.logger.WithField("path", path).WithError(err).Error("Failed to load NAS file")
		switch {
		case os.IsNotExist(err):
			// dangling symlink
			return nil, errorf(ErrNotFound, err, "NAS file not found: %s", path)
		case os.IsPermission(err):
			return nil, errorf(ErrPermission, err, "NAS file not readable: %s", path)
		default:
			return nil, errorf(ErrIO, err, "failed to open NAS file: %s", path)
		}
	}

	return file, nil
}

// Delete removes the file referenced by fm. In read-only mode the file is
// left on disk and only the association is considered removed.
func (n *NASBackend) Delete(ctx context.Context, fm *FileMetadata) bool {
	path, err := n.filePath(fm)
	if err != nil {
		n.logger.WithError(err).Error("Failed to delete NAS file")
		return false
	}

	if n.readOnly {
		n.logger.WithField("path", path).Info("NAS file association removed (read-only mode), original file preserved")
		return true
	}

	unlock := n.lock(path)
	defer unlock()

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true
		}
		n.logger.WithField("path", path).WithError(err).Error("Failed to delete NAS file")
		return false
	}
	if info.IsDir() {
		n.logger.WithField("path", path).Error("Failed to delete NAS file: path is a directory")
		return false
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return true
		}
		n.logger.WithField("path", path).WithError(err).Error("Failed to delete NAS file")
		return false
	}

	n.logger.WithField("path", path).Info("Deleted NAS file")
	return true
}

// PublicURL joins the public URL base with the file's path relative to the
// NAS root. expire has no effect: NAS URLs are never signed or time-limited.
func (n *NASBackend) PublicURL(ctx context.Context, fm *FileMetadata, expire time.Duration) (string, bool) {
	if n.publicURLBase == "" {
		return "", false
	}

	path, err := n.filePath(fm)
	if err != nil {
		n.logger.WithError(err).Warn("Cannot build public URL")
		return "", false
	}

	relPath, ok := n.relativePath(path)
	if !ok {
		n.logger.WithField("path", path).Warn("File is not within NAS base path")
		return "", false
	}

	return strings.TrimRight(n.publicURLBase, "/") + "/" + filepath.ToSlash(relPath), true
}

// Close closes the NAS backend
func (n *NASBackend) Close() error {
	// NAS backend holds no open resources
	return nil
}

// Helper methods

// filePath decodes fm.StoragePath into an absolute filesystem path
func (n *NASBackend) filePath(fm *FileMetadata) (string, error) {
	if fm == nil {
		return "", errorf(ErrValidation, nil, "file metadata is required")
	}

	loc, err := ParseLocation(fm.StoragePath)
	if err != nil {
		return "", err
	}
	if loc.Path != "" {
		return filepath.Clean(loc.Path), nil
	}

	// No path parameter: rebuild from bucket and file id
	if err := validateName("bucket", loc.Bucket, false); err != nil {
		return "", err
	}
	if err := validateName("file id", loc.FileID, true); err != nil {
		return "", err
	}
	return filepath.Join(n.basePath, loc.Bucket, filepath.FromSlash(loc.FileID)), nil
}

// relativePath returns path relative to the NAS root, or false when path is
// the root itself or lies outside it
func (n *NASBackend) relativePath(path string) (string, bool) {
	relPath, err := filepath.Rel(n.basePath, path)
	if err != nil {
		return "", false
	}
	if relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", false
	}
	return relPath, true
}

// lock serializes writers of the same path and returns the unlock function
func (n *NASBackend) lock(path string) func() {
	n.locksMu.Lock()
	l, ok := n.writeLocks[path]
	if !ok {
		l = &pathLock{}
		n.writeLocks[path] = l
	}
	l.refs++
	n.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		n.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(n.writeLocks, path)
		}
		n.locksMu.Unlock()
	}
}

// validateName checks that a bucket or file id is a relative name that
// cannot climb out of its parent directory
func validateName(kind, name string, allowNested bool) error {
	if name == "" {
		return errorf(ErrValidation, nil, "%s must not be empty", kind)
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return errorf(ErrValidation, nil, "%s must be relative: %s", kind, name)
	}
	if !allowNested && strings.ContainsAny(name, `/\`) {
		return errorf(ErrValidation, nil, "%s must not contain path separators: %s", kind, name)
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." || part == "." || part == "" {
			return errorf(ErrValidation, nil, "invalid %s: %s", kind, name)
		}
	}
	return nil
}

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/maxiofs/nasfs/internal/storage"
)

// BadgerStore implements the Store interface using BadgerDB
type BadgerStore struct {
	db     *badger.DB
	ready  atomic.Bool
	logger *logrus.Logger
}

// BadgerOptions contains configuration options for BadgerStore
type BadgerOptions struct {
	DataDir    string
	InMemory   bool // Keep everything in memory (tests)
	SyncWrites bool // If true, every write is synced to disk (slower but safer)
	Logger     *logrus.Logger
}

// NewBadgerStore creates a new BadgerDB-backed metadata store
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.DataDir == "" {
			return nil, fmt.Errorf("metadata data dir is required")
		}
		badgerOpts = badger.DefaultOptions(opts.DataDir)
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(opts.Logger)).
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &BadgerStore{
		db:     db,
		logger: opts.Logger,
	}
	store.ready.Store(true)

	opts.Logger.WithFields(logrus.Fields{
		"path":      opts.DataDir,
		"in_memory": opts.InMemory,
	}).Debug("BadgerDB metadata store initialized")

	return store, nil
}

// ==================== Key Naming Scheme ====================

func fileKey(bucket, fileID string) []byte {
	return []byte(fmt.Sprintf("file:%s:%s", bucket, fileID))
}

func fileListPrefix(bucket string) []byte {
	if bucket == "" {
		return []byte("file:")
	}
	return []byte(fmt.Sprintf("file:%s:", bucket))
}

func validateKey(bucket, fileID string) error {
	if bucket == "" || fileID == "" {
		return ErrInvalidKey
	}
	// ':' separates key segments
	if strings.Contains(bucket, ":") {
		return ErrInvalidKey
	}
	return nil
}

// ==================== File Operations ====================

// Put stores the record, setting CreatedAt when it is missing
func (s *BadgerStore) Put(ctx context.Context, fm *storage.FileMetadata) error {
	if fm == nil {
		return fmt.Errorf("file metadata cannot be nil")
	}
	if !s.ready.Load() {
		return ErrStoreClosed
	}
	if err := validateKey(fm.Bucket, fm.FileID); err != nil {
		return err
	}

	if fm.CreatedAt.IsZero() {
		fm.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(fm)
	if err != nil {
		return fmt.Errorf("failed to marshal file metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fileKey(fm.Bucket, fm.FileID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store file metadata: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"bucket":  fm.Bucket,
		"file_id": fm.FileID,
	}).Debug("File recorded in metadata store")

	return nil
}

// Get retrieves a file record
func (s *BadgerStore) Get(ctx context.Context, bucket, fileID string) (*storage.FileMetadata, error) {
	if !s.ready.Load() {
		return nil, ErrStoreClosed
	}
	if err := validateKey(bucket, fileID); err != nil {
		return nil, err
	}

	var fm storage.FileMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(bucket, fileID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get file metadata: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &fm)
		})
	})
	if err != nil {
		return nil, err
	}

	return &fm, nil
}

// Delete removes a file record
func (s *BadgerStore) Delete(ctx context.Context, bucket, fileID string) error {
	if !s.ready.Load() {
		return ErrStoreClosed
	}
	if err := validateKey(bucket, fileID); err != nil {
		return err
	}

	key := fileKey(bucket, fileID)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to check file metadata: %w", err)
		}
		return txn.Delete(key)
	})
}

// List returns records ordered by bucket and file id
func (s *BadgerStore) List(ctx context.Context, bucket string) ([]*storage.FileMetadata, error) {
	if !s.ready.Load() {
		return nil, ErrStoreClosed
	}

	var files []*storage.FileMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fileListPrefix(bucket)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var fm storage.FileMetadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &fm)
			}); err != nil {
				s.logger.WithError(err).WithField("key", string(it.Item().Key())).Warn("Skipping unreadable file record")
				continue
			}
			files = append(files, &fm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Close closes the underlying database
func (s *BadgerStore) Close() error {
	if !s.ready.CompareAndSwap(true, false) {
		return nil
	}
	return s.db.Close()
}

// ==================== Helper Functions ====================

// badgerLogger adapts logrus to BadgerDB's logger interface
type badgerLogger struct {
	logger *logrus.Logger
}

func newBadgerLogger(logger *logrus.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Tracef("[BadgerDB] "+format, args...)
}

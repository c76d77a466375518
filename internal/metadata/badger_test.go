package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/nasfs/internal/storage"
)

func setupTestStore(t *testing.T) *BadgerStore {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewBadgerStore(BadgerOptions{
		InMemory: true,
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStore_PutGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	fm := &storage.FileMetadata{
		Bucket:      "docs",
		FileID:      "a.txt",
		FileName:    "a.txt",
		Size:        5,
		StoragePath: "nas://docs/a.txt?path=/nas/docs/a.txt",
	}
	require.NoError(t, store.Put(ctx, fm))
	assert.False(t, fm.CreatedAt.IsZero(), "Put sets CreatedAt")

	got, err := store.Get(ctx, "docs", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, fm.StoragePath, got.StoragePath)
	assert.Equal(t, int64(5), got.Size)
	assert.True(t, fm.CreatedAt.Equal(got.CreatedAt))
}

func TestBadgerStore_PutKeepsCreatedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &storage.FileMetadata{Bucket: "b", FileID: "f", CreatedAt: created}))

	got, err := store.Get(ctx, "b", "f")
	require.NoError(t, err)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestBadgerStore_PutReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &storage.FileMetadata{Bucket: "b", FileID: "f", StoragePath: "/old"}))
	require.NoError(t, store.Put(ctx, &storage.FileMetadata{Bucket: "b", FileID: "f", StoragePath: "/new"}))

	got, err := store.Get(ctx, "b", "f")
	require.NoError(t, err)
	assert.Equal(t, "/new", got.StoragePath)
}

func TestBadgerStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "docs", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &storage.FileMetadata{Bucket: "docs", FileID: "a"}))
	require.NoError(t, store.Delete(ctx, "docs", "a"))

	_, err := store.Get(ctx, "docs", "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "docs", "a"), ErrNotFound)
}

func TestBadgerStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, fm := range []*storage.FileMetadata{
		{Bucket: "docs", FileID: "b"},
		{Bucket: "docs", FileID: "a"},
		{Bucket: "docs-archive", FileID: "x"},
		{Bucket: "images", FileID: "logo.png"},
	} {
		require.NoError(t, store.Put(ctx, fm))
	}

	t.Run("one bucket", func(t *testing.T) {
		files, err := store.List(ctx, "docs")
		require.NoError(t, err)
		require.Len(t, files, 2, "prefix must not match docs-archive")
		assert.Equal(t, "a", files[0].FileID)
		assert.Equal(t, "b", files[1].FileID)
	})

	t.Run("all buckets", func(t *testing.T) {
		files, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, files, 4)
	})

	t.Run("empty bucket", func(t *testing.T) {
		files, err := store.List(ctx, "videos")
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestBadgerStore_InvalidKeys(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, &storage.FileMetadata{Bucket: "", FileID: "a"}), ErrInvalidKey)
	assert.ErrorIs(t, store.Put(ctx, &storage.FileMetadata{Bucket: "a:b", FileID: "a"}), ErrInvalidKey)
	_, err := store.Get(ctx, "docs", "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Error(t, store.Put(ctx, nil))
}

func TestBadgerStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerStore(BadgerOptions{DataDir: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, &storage.FileMetadata{Bucket: "docs", FileID: "a", StoragePath: "/nas/docs/a"}))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(BadgerOptions{DataDir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "/nas/docs/a", got.StoragePath)
}

func TestBadgerStore_Closed(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "second close is a no-op")

	_, err := store.Get(context.Background(), "docs", "a")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

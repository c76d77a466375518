package metrics

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/nasfs/internal/config"
	"github.com/maxiofs/nasfs/internal/storage"
)

func setupInstrumentedNAS(t *testing.T) (storage.Backend, *prometheusRecorder, string) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	basePath := t.TempDir()
	cfg := config.DefaultNASConfig(basePath)
	cfg.ReadOnly = false
	cfg.AutoCreateDirectories = true

	nas, err := storage.NewNASBackend(cfg, logger)
	require.NoError(t, err)

	r := newTestRecorder(t)
	return Instrument(nas, r), r, nas.BasePath()
}

func TestInstrument_NilRecorder(t *testing.T) {
	nas, err := storage.NewNASBackend(config.DefaultNASConfig(t.TempDir()), nil)
	require.NoError(t, err)

	assert.Same(t, nas, Instrument(nas, nil))
}

func TestInstrument_Unwrap(t *testing.T) {
	nas, err := storage.NewNASBackend(config.DefaultNASConfig(t.TempDir()), nil)
	require.NoError(t, err)

	wrapped, ok := Instrument(nas, newTestRecorder(t)).(interface{ Unwrap() storage.Backend })
	require.True(t, ok)
	assert.Same(t, nas, wrapped.Unwrap())
}

func TestInstrument_IngestCountsBytes(t *testing.T) {
	backend, r, _ := setupInstrumentedNAS(t)
	ctx := context.Background()

	path, err := backend.Save(ctx, "docs", "a.txt", strings.NewReader("hello world"), storage.SaveOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.storageOperationsTotal.WithLabelValues("save", "success")))
	assert.Equal(t, 11.0, testutil.ToFloat64(r.storageBytesWritten.WithLabelValues("docs")))

	rc, err := backend.Load(ctx, &storage.FileMetadata{Bucket: "docs", FileID: "a.txt", StoragePath: path})
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storageOperationsTotal.WithLabelValues("load", "success")))
}

func TestInstrument_LinkKeepsNamedReader(t *testing.T) {
	backend, r, basePath := setupInstrumentedNAS(t)
	ctx := context.Background()

	source := filepath.Join(basePath, "existing.bin")
	require.NoError(t, os.WriteFile(source, []byte("already here"), 0o644))

	path, err := backend.Save(ctx, "docs", "linked", storage.ExistingFile(source), storage.SaveOptions{})
	require.NoError(t, err)

	loc, err := storage.ParseLocation(path)
	require.NoError(t, err)
	assert.Equal(t, source, loc.Path, "the link must point at the original file")

	_, err = os.Stat(filepath.Join(basePath, "docs", "linked"))
	assert.True(t, os.IsNotExist(err), "link mode copies nothing")
	assert.Equal(t, 0, testutil.CollectAndCount(r.storageBytesWritten))
}

func TestInstrument_Failures(t *testing.T) {
	backend, r, _ := setupInstrumentedNAS(t)
	ctx := context.Background()

	_, err := backend.Save(ctx, "../escape", "a", strings.NewReader("x"), storage.SaveOptions{})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storageOperationsTotal.WithLabelValues("save", "failure")))
	assert.Equal(t, 0, testutil.CollectAndCount(r.storageBytesWritten))

	missing := &storage.FileMetadata{Bucket: "docs", FileID: "missing", StoragePath: "nas://docs/missing"}
	_, err = backend.Load(ctx, missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storageOperationsTotal.WithLabelValues("load", "failure")))

	_, ok := backend.PublicURL(ctx, missing, time.Hour)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storageOperationsTotal.WithLabelValues("public_url", "failure")))
}

func TestInstrument_Delete(t *testing.T) {
	backend, r, _ := setupInstrumentedNAS(t)
	ctx := context.Background()

	path, err := backend.Save(ctx, "docs", "gone", strings.NewReader("bye"), storage.SaveOptions{})
	require.NoError(t, err)

	assert.True(t, backend.Delete(ctx, &storage.FileMetadata{Bucket: "docs", FileID: "gone", StoragePath: path}))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storageOperationsTotal.WithLabelValues("delete", "success")))
	assert.NoError(t, backend.Close())
}

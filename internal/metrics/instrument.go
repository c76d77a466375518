package metrics

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/maxiofs/nasfs/internal/storage"
)

// instrumentedBackend records every call of the wrapped backend
type instrumentedBackend struct {
	backend  storage.Backend
	recorder Recorder
}

// Instrument wraps backend so that each operation is counted and timed by recorder
func Instrument(backend storage.Backend, recorder Recorder) storage.Backend {
	if recorder == nil {
		return backend
	}
	return &instrumentedBackend{backend: backend, recorder: recorder}
}

func (b *instrumentedBackend) Save(ctx context.Context, bucket, fileID string, data io.Reader, opts storage.SaveOptions) (string, error) {
	start := time.Now()

	// Readers that name a file select link mode and must reach the backend untouched
	var counter *countingReader
	if _, named := data.(interface{ Name() string }); !named && data != nil {
		counter = &countingReader{r: data}
		data = counter
	}

	path, err := b.backend.Save(ctx, bucket, fileID, data, opts)
	b.recorder.RecordStorageOperation("save", err == nil, time.Since(start))
	if err == nil && counter != nil {
		b.recorder.RecordBytesWritten(bucket, counter.n.Load())
	}
	return path, err
}

func (b *instrumentedBackend) Load(ctx context.Context, fm *storage.FileMetadata) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := b.backend.Load(ctx, fm)
	b.recorder.RecordStorageOperation("load", err == nil, time.Since(start))
	return rc, err
}

func (b *instrumentedBackend) Delete(ctx context.Context, fm *storage.FileMetadata) bool {
	start := time.Now()
	ok := b.backend.Delete(ctx, fm)
	b.recorder.RecordStorageOperation("delete", ok, time.Since(start))
	return ok
}

func (b *instrumentedBackend) PublicURL(ctx context.Context, fm *storage.FileMetadata, expire time.Duration) (string, bool) {
	start := time.Now()
	url, ok := b.backend.PublicURL(ctx, fm, expire)
	b.recorder.RecordStorageOperation("public_url", ok, time.Since(start))
	return url, ok
}

func (b *instrumentedBackend) Close() error {
	return b.backend.Close()
}

// Unwrap returns the decorated backend
func (b *instrumentedBackend) Unwrap() storage.Backend {
	return b.backend
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

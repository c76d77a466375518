package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/nasfs/internal/config"
	"github.com/maxiofs/nasfs/internal/metrics"
	"github.com/maxiofs/nasfs/internal/storage"
)

func TestResolvedBasePath(t *testing.T) {
	basePath := t.TempDir()
	nas, err := storage.NewNASBackend(config.DefaultNASConfig(basePath), nil)
	require.NoError(t, err)

	t.Run("plain backend", func(t *testing.T) {
		assert.Equal(t, nas.BasePath(), resolvedBasePath(nas, "fallback"))
	})

	t.Run("through the metrics decorator", func(t *testing.T) {
		recorder := metrics.NewRecorder(config.MetricsConfig{Enable: true})
		backend := metrics.Instrument(nas, recorder)

		assert.Equal(t, nas.BasePath(), resolvedBasePath(backend, "fallback"))
	})

	t.Run("nil backend", func(t *testing.T) {
		assert.Equal(t, "fallback", resolvedBasePath(nil, "fallback"))
	})
}

func TestNewApp_ResolvesBasePathWithMetrics(t *testing.T) {
	basePath := t.TempDir()
	rootCmd := newRootCmd()
	statCmd, _, err := rootCmd.Find([]string{"stat"})
	require.NoError(t, err)
	require.NoError(t, rootCmd.PersistentFlags().Set("base-path", basePath))
	require.NoError(t, rootCmd.PersistentFlags().Set("catalog-dir", t.TempDir()))
	require.NoError(t, rootCmd.PersistentFlags().Set("metrics-file", filepath.Join(t.TempDir(), "nasfs.prom")))
	require.NoError(t, statCmd.ParseFlags(nil))

	a, err := newApp(statCmd)
	require.NoError(t, err)
	defer a.Close()

	expected, err := filepath.EvalSymlinks(basePath)
	require.NoError(t, err)
	assert.Equal(t, expected, a.basePath)
}

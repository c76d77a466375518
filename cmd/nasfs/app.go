package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maxiofs/nasfs/internal/config"
	"github.com/maxiofs/nasfs/internal/logging"
	"github.com/maxiofs/nasfs/internal/metadata"
	"github.com/maxiofs/nasfs/internal/metrics"
	"github.com/maxiofs/nasfs/internal/storage"
)

// app holds everything a command needs for one invocation
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	backend  storage.Backend
	catalog  metadata.Store
	recorder metrics.Recorder
	basePath string

	logCloser io.Closer
}

// newApp loads configuration and wires logging, the storage backend,
// metrics and the file catalog
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logCloser, err := logging.Setup(logger, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
	}

	backend, err := storage.NewBackend(cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	a.recorder = metrics.NewRecorder(cfg.Metrics)
	a.backend = metrics.Instrument(backend, a.recorder)
	a.basePath = resolvedBasePath(a.backend, cfg.Storage.NAS.BasePath)

	catalog, err := metadata.NewBadgerStore(metadata.BadgerOptions{
		DataDir:    cfg.Catalog.Dir,
		SyncWrites: true,
		Logger:     logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open file catalog: %w", err)
	}
	a.catalog = catalog

	logger.WithFields(logrus.Fields{
		"version":   version,
		"base_path": a.basePath,
		"catalog":   cfg.Catalog.Dir,
		"read_only": cfg.Storage.NAS.ReadOnly,
	}).Debug("nasfs initialized")

	return a, nil
}

// resolvedBasePath returns the NAS root as resolved by the backend, looking
// through decorators, or fallback when the backend does not expose one
func resolvedBasePath(backend storage.Backend, fallback string) string {
	for backend != nil {
		if nas, ok := backend.(interface{ BasePath() string }); ok {
			return nas.BasePath()
		}
		wrapped, ok := backend.(interface{ Unwrap() storage.Backend })
		if !ok {
			break
		}
		backend = wrapped.Unwrap()
	}
	return fallback
}

// Close flushes metrics and releases the catalog, backend and log file
func (a *app) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.cfg.Metrics.Textfile != "" && a.recorder != nil {
		if err := a.recorder.UpdateDiskUsage(a.basePath); err != nil {
			a.logger.WithError(err).Warn("Failed to read NAS disk usage")
		}
		if err := a.recorder.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.WithError(err).Error("Failed to write metrics")
			keep(err)
		}
	}

	if a.catalog != nil {
		keep(a.catalog.Close())
	}
	if a.backend != nil {
		keep(a.backend.Close())
	}
	if a.logCloser != nil {
		keep(a.logCloser.Close())
	}

	return firstErr
}

// runWithApp adapts a command body that needs a wired app to cobra's RunE
func runWithApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, a, args)
	}
}

package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Options controls how a logger is configured
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // json, text
	File   string // optional JSON-lines mirror
}

// Setup applies level and format to logger and, when opts.File is set,
// attaches a hook mirroring every entry to that file. The returned closer
// releases the file.
func Setup(logger *logrus.Logger, opts Options) (io.Closer, error) {
	switch opts.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, opts.Format)
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.File == "" {
		return nopCloser{}, nil
	}

	output, err := NewFileOutput(opts.File)
	if err != nil {
		return nil, err
	}
	logger.AddHook(NewOutputHook(output))

	logger.WithFields(logrus.Fields{
		"level": level.String(),
		"file":  opts.File,
	}).Debug("Log file output configured")

	return output, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

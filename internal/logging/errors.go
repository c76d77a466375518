package logging

import "errors"

var (
	// ErrInvalidFormat is returned when the log format is neither json nor text
	ErrInvalidFormat = errors.New("invalid log format")

	// ErrLogFileNotConfigured is returned when a file output has no path
	ErrLogFileNotConfigured = errors.New("log file not configured")

	// ErrOutputClosed is returned when writing to a closed output
	ErrOutputClosed = errors.New("log output closed")
)

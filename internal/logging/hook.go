package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputHook is a logrus hook that sends logs to an Output
type OutputHook struct {
	output Output
	levels []logrus.Level
}

// NewOutputHook creates a new output hook firing for every level
func NewOutputHook(output Output) *OutputHook {
	return &OutputHook{
		output: output,
		levels: logrus.AllLevels,
	}
}

// Levels returns the log levels this hook should fire for
func (h *OutputHook) Levels() []logrus.Level {
	return h.levels
}

// Fire is called when a log event occurs. The write is synchronous: a CLI
// process may exit right after logging.
func (h *OutputHook) Fire(entry *logrus.Entry) error {
	logEntry := &LogEntry{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Fields:    make(map[string]interface{}, len(entry.Data)),
	}

	for k, v := range entry.Data {
		// error values marshal to {} otherwise
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		logEntry.Fields[k] = v
	}

	if err := h.output.Write(logEntry); err != nil {
		// Logging through entry.Logger here would recurse into this hook
		fmt.Fprintf(os.Stderr, "failed to write to log output: %v\n", err)
	}

	return nil
}

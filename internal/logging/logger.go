// Package logging writes human-readable diagnostics with charmbracelet/log.
//
// The TUI owns the terminal, so it logs to a dated file under the data
// directory. CLI commands log to stderr instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu     sync.Mutex
	logger = log.New(io.Discard)
	file   *os.File
)

// FileName returns the log file name for day.
func FileName(day time.Time) string {
	return fmt.Sprintf("divya-%s.log", day.Format("2006-01-02"))
}

// InitFile directs logging to dir/divya-YYYY-MM-DD.log and returns the path.
func InitFile(dir string, level log.Level) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, FileName(time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
	}
	file = f
	logger = log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
	return path, nil
}

// InitWriter directs logging to w, typically os.Stderr.
func InitWriter(w io.Writer, level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           level,
	})
}

// Close flushes and closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	logger = log.New(io.Discard)
}

func current() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Debug(msg string, keyvals ...any) { current().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { current().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { current().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { current().Error(msg, keyvals...) }

// With returns a sub-logger tagged with a component prefix.
func With(prefix string) *log.Logger {
	return current().WithPrefix(prefix)
}

// ParseLevel maps a level name to a log.Level, defaulting to info.
func ParseLevel(s string) log.Level {
	l, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return l
}

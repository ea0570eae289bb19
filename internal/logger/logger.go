package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = new(slog.LevelVar)
	format       = "text"
	output       io.Writer = os.Stdout
	closer       io.Closer
	logger       = newLogger(output, format)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseLevel(level string) (Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

func newLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: currentLevel}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	if l, ok := parseLevel(level); ok {
		currentLevel.Set(l.slogLevel())
	}
}

// Configure selects level, format ("text" or "json") and output
// ("stdout", "stderr" or a file path, opened in append mode).
func Configure(level, logFormat, out string) error {
	w, c, err := openOutput(out)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if closer != nil {
		_ = closer.Close()
	}
	closer = c
	output = w
	if logFormat != "" {
		format = strings.ToLower(logFormat)
	}
	logger = newLogger(output, format)
	SetLevel(level)
	return nil
}

func openOutput(out string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(out) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %s: %w", out, err)
	}
	return f, f, nil
}

// SetOutput redirects log output, keeping the current format and level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	logger = newLogger(output, format)
}

// Enabled reports whether messages at level would be written.
func Enabled(level Level) bool {
	return level.slogLevel() >= currentLevel.Level()
}

func log(level Level, msg string, v ...any) {
	if !Enabled(level) {
		return
	}

	mu.RLock()
	l := logger
	mu.RUnlock()

	if len(v) > 0 {
		msg = fmt.Sprintf(msg, v...)
	}
	l.Log(context.Background(), level.slogLevel(), msg)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}

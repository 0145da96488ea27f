// Package logger is a small component-tagged facade over log/slog.
//
// Output always goes to stderr by default: the stdio MCP transport owns stdout.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// LogLevel is the minimum severity that gets written.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "unknown"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	mu    sync.RWMutex
	level = new(slog.LevelVar)
	base  = newLogger(os.Stderr, "text")
)

func newLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a textual level to a LogLevel. Empty input means INFO.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return INFO, nil
	case "debug":
		return DEBUG, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %q", s)
	}
}

// SetLevel changes the minimum level for all subsequent log calls.
func SetLevel(l LogLevel) {
	level.Set(l.slogLevel())
}

// Configure replaces the output handler. format is "text" or "json".
func Configure(w io.Writer, l LogLevel, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", format)
	}
	if w == nil {
		w = os.Stderr
	}
	SetLevel(l)
	mu.Lock()
	base = newLogger(w, format)
	mu.Unlock()
	return nil
}

// Slog returns the underlying logger for packages that take a *slog.Logger.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func log(l slog.Level, component, msg string, fields map[string]any) {
	args := make([]any, 0, 2+2*len(fields))
	if component != "" {
		args = append(args, "component", component)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	Slog().Log(context.Background(), l, msg, args...)
}

func DebugCF(component, msg string, fields map[string]any) {
	log(slog.LevelDebug, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]any) {
	log(slog.LevelInfo, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]any) {
	log(slog.LevelWarn, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]any) {
	log(slog.LevelError, component, msg, fields)
}

func Debug(msg string) { log(slog.LevelDebug, "", msg, nil) }
func Info(msg string)  { log(slog.LevelInfo, "", msg, nil) }
func Warn(msg string)  { log(slog.LevelWarn, "", msg, nil) }
func Error(msg string) { log(slog.LevelError, "", msg, nil) }

// Package log provides structured logging for tabfetch.
// Entries are written to a file, kept in a bounded in-memory buffer and
// fanned out to subscribers. Logging stays off unless --debug or
// TABFETCH_DEBUG enables it.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/zjrosen/tabfetch/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
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

// Category groups related log messages.
type Category string

const (
	CatConfig  Category = "config"  // Configuration loading/saving
	CatFetch   Category = "fetch"   // HTTP requests and decoding
	CatJob     Category = "job"     // Background fetch jobs
	CatLoop    Category = "loop"    // Event loop dispatch
	CatBridge  Category = "bridge"  // Event bridge transport
	CatUI      Category = "ui"      // UI component updates
	CatCache   Category = "cache"   // cache operations
	CatTrace   Category = "trace"   // Tracing provider
	CatWatcher Category = "watcher" // Config file watcher events
)

// DefaultBufferSize is the number of entries kept in memory when Init is
// given a non-positive size.
const DefaultBufferSize = 500

// Entry is a single buffered log line.
type Entry struct {
	Time     time.Time
	Level    Level
	Category Category
	Line     string
}

// Logger provides structured logging.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	writer   io.Writer
	enabled  bool
	minLevel Level
	buffer   []Entry
	bufSize  int
	broker   *pubsub.Broker[string]
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Init opens path for appending and installs it as the global logger.
// bufferSize bounds the in-memory history. Returns a cleanup function that
// closes the file and detaches the logger.
func Init(path string, bufferSize int) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	l := newLogger(f, bufferSize)
	l.file = f
	install(l)

	return func() {
		install(nil)
		l.broker.Close()
		_ = f.Close()
	}, nil
}

// InitWriter installs a logger writing to w instead of a file. Used by tests.
func InitWriter(w io.Writer, bufferSize int) func() {
	l := newLogger(w, bufferSize)
	install(l)
	return func() {
		install(nil)
		l.broker.Close()
	}
}

func newLogger(w io.Writer, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Logger{
		writer:   w,
		enabled:  true,
		minLevel: LevelDebug,
		bufSize:  bufferSize,
		broker:   pubsub.NewBroker[string](),
	}
}

func install(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if l := current(); l != nil {
		l.mu.Lock()
		l.enabled = enabled
		l.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if l := current(); l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(level Level, cat Category, msg string, fields ...any) {
	l := current()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	// Format: 2025-12-06T10:45:00 [ERROR] [fetch] message key=value key2=value2
	now := time.Now()
	entry := fmt.Sprintf("%s [%s] [%s] %s", now.Format("2006-01-02T15:04:05"), level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		entry += fmt.Sprintf(" %v=%v", fields[i], fields[i+1])
	}
	// Odd field count - append orphan key with no value
	if len(fields)%2 != 0 {
		entry += fmt.Sprintf(" %v=<missing>", fields[len(fields)-1])
	}

	if l.writer != nil {
		_, _ = l.writer.Write([]byte(entry + "\n"))
	}

	l.buffer = append(l.buffer, Entry{Time: now, Level: level, Category: cat, Line: entry})
	if over := len(l.buffer) - l.bufSize; over > 0 {
		l.buffer = append(l.buffer[:0], l.buffer[over:]...)
	}

	l.broker.Publish(pubsub.CreatedEvent, entry)
}

// Entries returns a copy of the buffered entries at or above minLevel,
// oldest first.
func Entries(minLevel Level) []Entry {
	l := current()
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.buffer))
	for _, e := range l.buffer {
		if e.Level >= minLevel {
			out = append(out, e)
		}
	}
	return out
}

// ClearBuffer drops all buffered entries.
func ClearBuffer() {
	if l := current(); l != nil {
		l.mu.Lock()
		l.buffer = nil
		l.mu.Unlock()
	}
}

// LogEvent is a pubsub event containing a log entry.
type LogEvent = pubsub.Event[string]

// LogListener wraps a continuous listener for log events.
type LogListener = pubsub.ContinuousListener[string]

// NewListener creates a new log event listener.
// The listener is automatically cleaned up when the context is cancelled.
func NewListener(ctx context.Context) *LogListener {
	l := current()
	if l == nil {
		return nil
	}
	return pubsub.NewContinuousListener(ctx, l.broker)
}

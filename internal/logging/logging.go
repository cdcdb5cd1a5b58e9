package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pion/logging"
)

var (
	mu      sync.Mutex
	out     = &swapWriter{w: os.Stderr}
	loggers []*logging.DefaultLeveledLogger

	loggerFactory = &logging.DefaultLoggerFactory{
		Writer:          out,
		DefaultLogLevel: logging.LogLevelWarn,
		ScopeLevels:     make(map[string]logging.LogLevel),
	}
)

// NewLogger creates a scoped logger. Loggers are usually created once per package
// and kept in a package level variable.
func NewLogger(scope string) logging.LeveledLogger {
	mu.Lock()
	defer mu.Unlock()
	l := loggerFactory.NewLogger(scope)
	if dl, ok := l.(*logging.DefaultLeveledLogger); ok {
		loggers = append(loggers, dl)
	}
	return l
}

// Configure redirects every logger, including the ones already created, to w at
// the given level. A nil w keeps the current writer.
func Configure(w io.Writer, level logging.LogLevel) {
	if w != nil {
		out.set(w)
	}

	mu.Lock()
	defer mu.Unlock()
	loggerFactory.DefaultLogLevel = level
	for _, l := range loggers {
		l.SetLevel(level)
	}
}

// ParseLevel maps a level name such as "debug" to a pion log level. Unknown names
// fall back to warn.
func ParseLevel(name string) logging.LogLevel {
	switch strings.ToLower(name) {
	case "disabled", "off":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "info":
		return logging.LogLevelInfo
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelWarn
	}
}

type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

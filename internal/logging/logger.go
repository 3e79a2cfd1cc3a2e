package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger is the printf-style logging contract used across the codebase.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Level controls the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgCyan),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
}

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

type stdLogger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	component string
}

// New creates a logger writing to stderr at the given level.
func New(level Level) Logger {
	return &stdLogger{out: os.Stderr, level: level}
}

// NewWithWriter creates a logger with an explicit destination, used in
// tests.
func NewWithWriter(w io.Writer, level Level) Logger {
	return &stdLogger{out: w, level: level}
}

// NewComponentLogger creates an info-level logger tagged with a
// component name.
func NewComponentLogger(component string) Logger {
	return &stdLogger{out: os.Stderr, level: LevelInfo, component: component}
}

func (l *stdLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := levelColors[level].Sprintf("[%s]", levelNames[level])
	ts := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		fmt.Fprintf(l.out, "%s %s [%s] %s\n", ts, prefix, l.component, msg)
		return
	}
	fmt.Fprintf(l.out, "%s %s %s\n", ts, prefix, msg)
}

func (l *stdLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *stdLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *stdLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *stdLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

// OrNop returns the given logger, or a no-op logger when nil. Library
// code calls this on injected loggers so nil is always safe.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

package log

import (
	"io"
	"log"
	"os"
)

type Level int

const (
	LevelInfo Level = iota
	LevelDebug
)

// Logger writes prefixed lines to one writer. Debug lines are dropped unless
// the logger was created with LevelDebug.
type Logger struct {
	level Level
	info  *log.Logger
	warn  *log.Logger
	debug *log.Logger
}

func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		level: level,
		info:  log.New(out, "INFO: ", log.LstdFlags),
		warn:  log.New(out, "WARN: ", log.LstdFlags),
		debug: log.New(out, "DEBUG: ", log.LstdFlags),
	}
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return New(LevelInfo, io.Discard)
}

// Verbose maps a --verbose flag to a level.
func Verbose(v bool) Level {
	if v {
		return LevelDebug
	}
	return LevelInfo
}

func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.info.Printf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.warn.Printf(format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || l.level < LevelDebug {
		return
	}
	l.debug.Printf(format, args...)
}

func (l *Logger) Level() Level {
	return l.level
}

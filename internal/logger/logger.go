package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	mu     sync.RWMutex
	global = newBase(os.Stdout, LogLevelInfo)
)

func newBase(out io.Writer, level LogLevel) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(toZerolog(level)).With().Timestamp().Logger()
}

func toZerolog(level LogLevel) zerolog.Level {
	switch LogLevel(strings.ToLower(string(level))) {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Configure replaces the process logger. A nil writer means stdout.
func Configure(out io.Writer, level LogLevel) {
	if out == nil {
		out = os.Stdout
	}
	mu.Lock()
	defer mu.Unlock()
	global = newBase(out, level)
}

type Log struct {
	zl  zerolog.Logger
	err error
}

func New() *Log {
	mu.RLock()
	defer mu.RUnlock()
	return &Log{zl: global}
}

func (l *Log) SetLevel(level LogLevel) {
	l.zl = l.zl.Level(toZerolog(level))
}

func (l *Log) WithError(err error) *Log {
	return &Log{zl: l.zl, err: err}
}

// WithField returns a copy that attaches key=value to every line.
func (l *Log) WithField(key string, value any) *Log {
	return &Log{zl: l.zl.With().Interface(key, value).Logger(), err: l.err}
}

func (l *Log) event(e *zerolog.Event, msg string) {
	if l.err != nil {
		e = e.Err(l.err)
	}
	e.Msg(msg)
}

func (l *Log) Debug(msg string) { l.event(l.zl.Debug(), msg) }

func (l *Log) Info(msg string) { l.event(l.zl.Info(), msg) }

func (l *Log) Warn(msg string) { l.event(l.zl.Warn(), msg) }

func (l *Log) Error(msg string) { l.event(l.zl.Error(), msg) }

// Package logging provides structured logging for the host and window processes.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger.
type Options struct {
	// Component is attached to every entry ("host", "window", ...).
	Component string

	// Debug lowers the level to debug for this logger.
	Debug bool

	// FilePath enables a rotating log file in addition to stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger wraps zerolog with process-specific output.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer // current output writer
	closer io.Closer // rotating file, if any
}

// New creates a logger writing to stderr and, when opts.FilePath is set, to a
// rotating log file. Stderr gets human readable console output when it is a
// terminal and JSON lines otherwise.
func New(opts Options) (*Logger, error) {
	writers := []io.Writer{consoleWriter(os.Stderr)}

	var closer io.Closer
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0700); err != nil {
			return nil, err
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	var output io.Writer = writers[0]
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	}

	l := newLogger(output, opts.Component, opts.Debug)
	l.closer = closer
	return l, nil
}

// NewLogger creates a stderr-only logger for the given component.
func NewLogger(component string) *Logger {
	return newLogger(consoleWriter(os.Stderr), component, false)
}

// NewWithWriter creates a logger that writes JSON lines to w. Used in tests.
func NewWithWriter(w io.Writer, component string) *Logger {
	return newLogger(w, component, true)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

func newLogger(output io.Writer, component string, debug bool) *Logger {
	ctx := zerolog.New(output).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	zl := ctx.Logger()
	if debug {
		zl = zl.Level(zerolog.DebugLevel)
	}
	return &Logger{zlog: zl, output: output}
}

func consoleWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return zerolog.ConsoleWriter{
			Out:        f,
			TimeFormat: "15:04:05",
		}
	}
	return f
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Named returns a child logger tagged with a sub-component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("component", component).Logger(),
		output: l.output,
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Close flushes and closes the rotating log file, if one is open.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// EnableDebug lowers the global level so debug entries are written.
func EnableDebug() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure global logger
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

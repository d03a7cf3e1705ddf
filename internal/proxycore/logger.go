package proxycore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
)

// LogLevel specifies the level of spew that should go to the log.
type LogLevel int

const (
	// LogLevelUnknown is a default value for LogLevel. Its
	// behavior is undefined.
	LogLevelUnknown LogLevel = iota

	// LogLevelPanic causes output of an error message followed by a panic.
	LogLevelPanic LogLevel = iota

	// LogLevelFatal causes output of an error message followed by os.Exit(1).
	LogLevelFatal LogLevel = iota

	// LogLevelError is for unexpected error messages.
	LogLevelError LogLevel = iota

	// LogLevelWarning is for warning messages.
	LogLevelWarning LogLevel = iota

	// LogLevelInfo is for info messages.
	LogLevelInfo LogLevel = iota

	// LogLevelDebug is for debug messages.
	LogLevelDebug LogLevel = iota

	// LogLevelTrace is for trace messages.
	LogLevelTrace LogLevel = iota
)

var logLevelNames = [...]string{
	"unknown", "panic", "fatal", "error", "warning", "info", "debug", "trace",
}

var nameToLogLevel = func() map[string]LogLevel {
	var result = make(map[string]LogLevel)
	for i, name := range logLevelNames {
		result[name] = LogLevel(i)
	}
	return result
}()

// StringToLogLevel converts a string to a LogLevel.
func StringToLogLevel(s string) LogLevel {
	result, ok := nameToLogLevel[strings.ToLower(s)]
	if !ok {
		result = LogLevelUnknown
	}
	return result
}

func (x *LogLevel) String() string {
	y := *x
	if y < LogLevelUnknown || y > LogLevelTrace {
		y = LogLevelUnknown
	}
	return logLevelNames[y]
}

// FromString initializes a LogLevel from a string.
func (x *LogLevel) FromString(s string) error {
	result := StringToLogLevel(s)
	if result == LogLevelUnknown {
		return fmt.Errorf("unknown log level: %q", s)
	}
	*x = result
	return nil
}

// minLogger is the minimal logging primitive a Logger is built on top of.
type minLogger interface {
	Print(args ...interface{})
	Prefix() string
}

// Logger is the logging interface used throughout the proxy: leveled
// output plus prefix forking, so every dispatcher, upstream, and tunnel
// supervisor can log under its own identity without threading a name
// through every call.
type Logger interface {
	minLogger

	// Panic outputs a log message and then panics.
	Panic(args ...interface{})

	// Log outputs to a Logger iff logLevel is enabled.
	Log(logLevel LogLevel, args ...interface{})

	// Logf outputs to a Logger iff logLevel is enabled.
	Logf(logLevel LogLevel, f string, args ...interface{})

	// ELogf outputs to a Logger iff ERROR logging level is enabled.
	ELogf(f string, args ...interface{})

	// WLogf outputs to a Logger iff WARNING logging level is enabled.
	WLogf(f string, args ...interface{})

	// ILogf outputs to a Logger iff INFO logging level is enabled.
	ILogf(f string, args ...interface{})

	// DLogf outputs to a Logger iff DEBUG logging level is enabled.
	DLogf(f string, args ...interface{})

	// TLogf outputs to a Logger iff TRACE logging level is enabled.
	TLogf(f string, args ...interface{})

	// Errorf returns an error object with a description string that has
	// the Logger's prefix.
	Errorf(f string, args ...interface{}) error

	// Sprintf returns a string that has the Logger's prefix.
	Sprintf(f string, args ...interface{}) string

	// DLogErrorf outputs an error message to a Logger iff DEBUG logging
	// level is enabled, and returns an error object with a description
	// string that has the logger's prefix.
	DLogErrorf(f string, args ...interface{}) error

	// Fork creates a new Logger that has an additional formatted string
	// appended onto an existing logger's prefix (with ": " added between).
	Fork(prefix string, args ...interface{}) Logger

	// GetLogLevel returns the log level.
	GetLogLevel() LogLevel
}

// BasicLogger is a logical log output stream with a level filter
// and a prefix added to each output record.
type BasicLogger struct {
	prefix string
	// prefixC is prefix if prefix is empty; otherwise prefix + ": "
	prefixC  string
	logger   minLogger
	logLevel LogLevel
}

const defaultLogFlags = log.Ldate | log.Ltime

// NewLogger creates a new Logger with a given prefix and default flags,
// emitting output to os.Stderr.
func NewLogger(prefix string, logLevel LogLevel) Logger {
	return NewLoggerWithFlags(prefix, defaultLogFlags, logLevel)
}

// NewLoggerWithFlags creates a new Logger with a given prefix and flags,
// emitting output to os.Stderr.
func NewLoggerWithFlags(prefix string, flags int, logLevel LogLevel) Logger {
	prefixC := prefix
	if prefixC != "" {
		prefixC += ": "
	}

	return &BasicLogger{
		prefix:   prefix,
		prefixC:  prefixC,
		logger:   log.New(os.Stderr, "", flags),
		logLevel: logLevel,
	}
}

// Print outputs to a Logger.
func (l *BasicLogger) Print(args ...interface{}) {
	l.logger.Print(l.Sprint(args...))
}

// Printf outputs to a Logger.
func (l *BasicLogger) Printf(f string, args ...interface{}) {
	l.logger.Print(l.Sprintf(f, args...))
}

// logNoPrefix outputs a message that already has its prefix applied, if
// logLevel is enabled, then panics or exits if logLevel demands it.
func (l *BasicLogger) logNoPrefix(logLevel LogLevel, msg string) {
	if logLevel <= l.logLevel || logLevel <= LogLevelFatal {
		if logLevel >= LogLevelPanic {
			l.logger.Print(msg)
		}
		if logLevel == LogLevelFatal {
			os.Exit(1)
		}
		if logLevel == LogLevelPanic {
			panic(msg)
		}
	}
}

// Log outputs to a Logger if the given logLevel is enabled. Then,
// if the given logLevel is LogLevelPanic or LogLevelFatal, exits
// appropriately.
func (l *BasicLogger) Log(logLevel LogLevel, args ...interface{}) {
	if logLevel <= l.logLevel || logLevel <= LogLevelFatal {
		l.logNoPrefix(logLevel, l.Sprint(args...))
	}
}

// Logf outputs to a Logger if the given logLevel is enabled. Then,
// if the given logLevel is LogLevelPanic or LogLevelFatal, exits
// appropriately.
func (l *BasicLogger) Logf(logLevel LogLevel, f string, args ...interface{}) {
	if logLevel <= l.logLevel || logLevel <= LogLevelFatal {
		l.logNoPrefix(logLevel, l.Sprintf(f, args...))
	}
}

// LogErrorf outputs an error message to a Logger iff logging level is
// enabled, and returns an error object with a description string that
// has the logger's prefix.
func (l *BasicLogger) LogErrorf(logLevel LogLevel, f string, args ...interface{}) error {
	msg := l.Sprintf(f, args...)
	l.logNoPrefix(logLevel, msg)
	return errors.New(msg)
}

// Panic outputs a log message if logLevel permits, and then panics.
func (l *BasicLogger) Panic(args ...interface{}) {
	l.Log(LogLevelPanic, args...)
}

// ELogf outputs a formatted log message if logLevel permits.
func (l *BasicLogger) ELogf(f string, args ...interface{}) {
	l.Logf(LogLevelError, f, args...)
}

// WLogf outputs a formatted log message if logLevel permits.
func (l *BasicLogger) WLogf(f string, args ...interface{}) {
	l.Logf(LogLevelWarning, f, args...)
}

// ILogf outputs a formatted log message if logLevel permits.
func (l *BasicLogger) ILogf(f string, args ...interface{}) {
	l.Logf(LogLevelInfo, f, args...)
}

// DLogf outputs a formatted log message if logLevel permits.
func (l *BasicLogger) DLogf(f string, args ...interface{}) {
	l.Logf(LogLevelDebug, f, args...)
}

// TLogf outputs a formatted log message if logLevel permits.
func (l *BasicLogger) TLogf(f string, args ...interface{}) {
	l.Logf(LogLevelTrace, f, args...)
}

// Errorf returns an error object with a description string that has the
// Logger's prefix.
func (l *BasicLogger) Errorf(f string, args ...interface{}) error {
	return errors.New(l.Sprintf(f, args...))
}

// Sprintf returns a string that has the Logger's prefix.
func (l *BasicLogger) Sprintf(f string, args ...interface{}) string {
	return l.prefixC + fmt.Sprintf(f, args...)
}

// Sprint returns a string that has the Logger's prefix.
func (l *BasicLogger) Sprint(args ...interface{}) string {
	return l.prefixC + fmt.Sprint(args...)
}

// DLogErrorf outputs an error message to a Logger iff DEBUG logging level
// is enabled, and returns an error object with a description string that
// has the logger's prefix.
func (l *BasicLogger) DLogErrorf(f string, args ...interface{}) error {
	return l.LogErrorf(LogLevelDebug, f, args...)
}

// flagsLogger is an interface for a logger that supports a Flags() API,
// satisfied by *log.Logger.
type flagsLogger interface {
	Flags() int
}

// Flags returns the logger flags bits.
func (l *BasicLogger) Flags() int {
	if fl, ok := l.logger.(flagsLogger); ok {
		return fl.Flags()
	}
	return defaultLogFlags
}

// Fork creates a new Logger that has an additional formatted string
// appended onto an existing logger's prefix (with ": " added between).
func (l *BasicLogger) Fork(prefix string, args ...interface{}) Logger {
	args = append([]interface{}{l.prefix}, args...)
	newPrefix := fmt.Sprintf("%s: "+prefix, args...)
	return NewLoggerWithFlags(newPrefix, l.Flags(), l.GetLogLevel())
}

// Prefix returns the Logger's prefix string (does not include the ": "
// trailer).
func (l *BasicLogger) Prefix() string {
	return l.prefix
}

// GetLogLevel returns the log level.
func (l *BasicLogger) GetLogLevel() LogLevel {
	return l.logLevel
}

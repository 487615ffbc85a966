// Package common provides logging utilities for the application
package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// Names of the loggers used throughout the application
var loggerNames = []string{"store", "index", "scanner", "persistence", "txn", "cli"}

// LoggerNames returns the names that can be used in a level override
func LoggerNames() []string {
	return slices.Clone(loggerNames)
}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// levelTags are the tags written in front of every line, by level
var levelTags = map[logger.LogLevel]string{
	logger.DEBUG:    "DEBUG",
	logger.INFO:     "INFO",
	logger.WARNING:  "WARN",
	logger.ERROR:    "ERROR",
	logger.CRITICAL: "CRIT",
}

// itemStoreLogger writes "<level> | <logger> | <message>" lines.
// The level can be changed while the logger is in use.
type itemStoreLogger struct {
	name   string
	level  atomic.Int32
	logger *log.Logger
}

func newItemStoreLogger(name string, level logger.LogLevel, out io.Writer, flags int) *itemStoreLogger {
	l := &itemStoreLogger{name: name, logger: log.New(out, "", flags)}
	l.SetLevel(level)
	return l
}

func (l *itemStoreLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *itemStoreLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *itemStoreLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *itemStoreLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *itemStoreLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *itemStoreLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf always panics, the message is only written if CRITICAL is enabled
func (l *itemStoreLogger) Panicf(format string, args ...interface{}) {
	l.logf(logger.CRITICAL, format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l *itemStoreLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.logger.Printf("%-5s | %-12s | %s", levelTags[level], l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger creates a logger for the given package name
func CreateLogger(pkgName string) logger.ILogger {
	return newItemStoreLogger(pkgName, logger.INFO, os.Stdout, log.Ldate|log.Ltime)
}

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	case "critical", "crit":
		return logger.CRITICAL, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %q. must be one of debug, info, warn, error, critical", level)
	}
}

// LogLevels is a default level plus overrides for single loggers
type LogLevels struct {
	Default   logger.LogLevel
	Overrides map[string]logger.LogLevel
}

// For returns the level of the named logger
func (l LogLevels) For(name string) logger.LogLevel {
	if lvl, ok := l.Overrides[name]; ok {
		return lvl
	}
	return l.Default
}

// String returns the levels in the form accepted by ParseLogLevels
func (l LogLevels) String() string {
	parts := []string{strings.ToLower(levelTags[l.Default])}
	names := make([]string, 0, len(l.Overrides))
	for name := range l.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+"="+strings.ToLower(levelTags[l.Overrides[name]]))
	}
	return strings.Join(parts, ",")
}

// ParseLogLevels parses a comma separated level list such as "info,store=debug,scanner=warn".
// An entry without a name sets the default level (info if absent). Every named entry
// must refer to a known logger and may appear only once.
func ParseLogLevels(spec string) (LogLevels, error) {
	levels := LogLevels{Default: logger.INFO, Overrides: map[string]logger.LogLevel{}}
	hasDefault := false

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, value, named := strings.Cut(part, "=")
		if !named {
			value = name
		}
		lvl, err := ParseLogLevel(value)
		if err != nil {
			return LogLevels{}, err
		}

		if !named {
			if hasDefault {
				return LogLevels{}, fmt.Errorf("default log level given twice in %q", spec)
			}
			levels.Default, hasDefault = lvl, true
			continue
		}

		name = strings.ToLower(strings.TrimSpace(name))
		if !slices.Contains(loggerNames, name) {
			return LogLevels{}, fmt.Errorf("unknown logger %q. must be one of %s", name, strings.Join(loggerNames, ", "))
		}
		if _, dup := levels.Overrides[name]; dup {
			return LogLevels{}, fmt.Errorf("log level for %q given twice", name)
		}
		levels.Overrides[name] = lvl
	}
	return levels, nil
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the custom logger factory and applies the levels parsed
// by ParseLogLevels to all loggers. It must be called once, before any logger is
// used: dragonboat caches loggers by name and refuses a second factory.
func InitLoggers(spec string) error {
	levels, err := ParseLogLevels(spec)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(levels.For(name))
	}
	logger.GetLogger("cli").Debugf("log levels: %s", levels)
	return nil
}

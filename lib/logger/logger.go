// Package logger provides the leveled logging facade used by the cedar
// engine and command-line interface.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Log Levels
// --------------------------------------------------------------------------

type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelDebug
)

// ParseLevel converts a string level to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger
// --------------------------------------------------------------------------

// ILogger is the leveled logging interface handed to components.
type ILogger interface {
	SetLevel(level Level)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// cedarLogger implements ILogger with custom formatting
type cedarLogger struct {
	name   string
	level  Level
	logger *log.Logger
}

func (l *cedarLogger) SetLevel(level Level) {
	l.level = level
}

func (l *cedarLogger) Debugf(format string, args ...interface{}) {
	if l.level >= LevelDebug {
		l.log("DEBUG", format, args...)
	}
}

func (l *cedarLogger) Infof(format string, args ...interface{}) {
	if l.level >= LevelInfo {
		l.log("INFO", format, args...)
	}
}

func (l *cedarLogger) Warningf(format string, args ...interface{}) {
	if l.level >= LevelWarning {
		l.log("WARN", format, args...)
	}
}

func (l *cedarLogger) Errorf(format string, args ...interface{}) {
	if l.level >= LevelError {
		l.log("ERROR", format, args...)
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *cedarLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-12s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Registry
// --------------------------------------------------------------------------

var (
	mu           sync.Mutex
	loggers      = map[string]*cedarLogger{}
	defaultLevel = LevelInfo
)

// GetLogger returns the named logger, creating it on first use. Loggers
// default to the info level until SetGlobalLevel or SetLevel is called.
func GetLogger(name string) ILogger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := &cedarLogger{
		name:   name,
		level:  defaultLevel,
		logger: log.New(os.Stderr, "", log.Ldate|log.Ltime),
	}
	loggers[name] = l
	return l
}

// SetGlobalLevel sets the level of all known loggers and the default for
// loggers created afterwards.
func SetGlobalLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	defaultLevel = level
	for _, l := range loggers {
		l.level = level
	}
}

package display

import (
	"fmt"
	"strings"
)

// Level is a log severity
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"trace": LevelTrace,
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// String returns the upper-case level name
func (l Level) String() string {
	for name, lvl := range levelNames {
		if lvl == l {
			return strings.ToUpper(name)
		}
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a level name to a Level.
// Empty or unknown names default to info; "warning" is accepted for warn.
func ParseLevel(name string) Level {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "warning" {
		normalized = "warn"
	}
	if lvl, ok := levelNames[normalized]; ok {
		return lvl
	}
	return LevelInfo
}

// Logger is the leveled logging surface the domain packages depend on
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Nop discards everything
type Nop struct{}

func (Nop) Debugf(string, ...interface{}) {}
func (Nop) Infof(string, ...interface{})  {}
func (Nop) Warnf(string, ...interface{})  {}
func (Nop) Errorf(string, ...interface{}) {}

package log

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Log is the structured logger every generator component writes to.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
	Named(name string) Log

	Sync() error

	SetLevel(level Level)
	GetLevel() Level
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent Level = 101
)

// ParseLevel maps a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off":
		return LevelSilent, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelSilent:
		return "silent"
	default:
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
}

// Field is one key/value pair of a record.
type Field = zap.Field

func Int(key string, val int) Field { return zap.Int(key, val) }

func String(key string, val string) Field { return zap.String(key, val) }

func Strings(key string, val []string) Field { return zap.Strings(key, val) }

func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

func Error(err error) Field { return zap.Error(err) }

// Site tags a record with the declaration it concerns.
func Site(name string) Field { return String("site", name) }

// Stage tags a record with the pipeline stage that produced it.
func Stage(name string) Field { return String("stage", name) }

// Code tags a record with a diagnostic code.
func Code(code string) Field { return String("code", code) }

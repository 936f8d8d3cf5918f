package log

import (
	"errors"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

type Logger struct {
	zapLogger *zap.Logger
	zapLevel  zap.AtomicLevel
}

// New builds a console logger writing to stderr.
func New(level Level) *Logger {
	zapLevel := zap.NewAtomicLevelAt(toZapLevel(level))
	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	config := zap.Config{
		Level:            zapLevel,
		Encoding:         "console",
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	zapLogger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{zapLogger: zapLogger, zapLevel: zapLevel}
}

// FromZap wraps an existing zap core. Tests use it with zaptest/observer.
func FromZap(core zapcore.Core) *Logger {
	return &Logger{
		zapLogger: zap.New(core),
		zapLevel:  zap.NewAtomicLevelAt(zap.DebugLevel),
	}
}

// Nop returns a logger discarding every record.
func Nop() *Logger {
	return &Logger{zapLogger: zap.NewNop(), zapLevel: zap.NewAtomicLevelAt(zapcore.InvalidLevel)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zapLogger.Debug(msg, fields...) }

func (l *Logger) Info(msg string, fields ...Field) { l.zapLogger.Info(msg, fields...) }

func (l *Logger) Warn(msg string, fields ...Field) { l.zapLogger.Warn(msg, fields...) }

func (l *Logger) Error(msg string, fields ...Field) { l.zapLogger.Error(msg, fields...) }

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zapLogger: l.zapLogger.With(fields...), zapLevel: l.zapLevel}
}

func (l *Logger) Named(name string) Log {
	return &Logger{zapLogger: l.zapLogger.Named(name), zapLevel: l.zapLevel}
}

func (l *Logger) SetLevel(level Level) { l.zapLevel.SetLevel(toZapLevel(level)) }

func (l *Logger) GetLevel() Level { return fromZapLevel(l.zapLevel.Level()) }

// Sync flushes buffered records. Sync errors on terminals are not reported.
func (l *Logger) Sync() error {
	err := l.zapLogger.Sync()
	if err != nil && isTerminalSyncError(err) {
		return nil
	}
	return err
}

func (l *Logger) enabled(level Level) bool {
	return l.zapLevel.Enabled(toZapLevel(level))
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	case LevelSilent:
		return zapcore.InvalidLevel
	default:
		return zap.InfoLevel
	}
}

func fromZapLevel(level zapcore.Level) Level {
	switch level {
	case zap.DebugLevel:
		return LevelDebug
	case zap.WarnLevel:
		return LevelWarn
	case zap.ErrorLevel:
		return LevelError
	case zapcore.InvalidLevel:
		return LevelSilent
	default:
		return LevelInfo
	}
}

func isTerminalSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}

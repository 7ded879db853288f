package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel определяет уровень важности сообщения
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// ParseLevel преобразует строку из конфигурации в LogLevel.
// Неизвестные значения трактуются как INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger - обертка над zap.SugaredLogger с двумя стилями вызова:
// структурным (Infow, Errorw, ...) и printf (Info, Error, ...).
type Logger struct {
	sugar *zap.SugaredLogger
}

// New создает логгер с консольным выводом и заданным уровнем
func New(level LogLevel) *Logger {
	return NewWithFormat(level, "console")
}

// NewWithFormat создает логгер; format = "json" включает JSON-кодировщик для продакшена.
func NewWithFormat(level LogLevel, format string) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encoding := "console"
	if format == "json" {
		encCfg = zap.NewProductionEncoderConfig()
		encoding = "json"
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level.zapLevel()),
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	base, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		// Конфигурация статическая, ошибка здесь означает проблему окружения
		base = zap.NewExample()
	}
	return &Logger{sugar: base.Sugar()}
}

// FromZap оборачивает готовый *zap.Logger
func FromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar()}
}

// NewNop возвращает логгер, который ничего не пишет (для тестов)
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Named возвращает дочерний логгер с именем компонента
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name)}
}

// With возвращает дочерний логгер с постоянными полями
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// Desugar отдает исходный *zap.Logger для библиотек, которые его принимают
func (l *Logger) Desugar() *zap.Logger {
	return l.sugar.Desugar().WithOptions(zap.AddCallerSkip(-1))
}

// Sync сбрасывает буферы
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *Logger) Infow(msg string, keysAndValues ...interface{})  { l.sugar.Infow(msg, keysAndValues...) }
func (l *Logger) Warnw(msg string, keysAndValues ...interface{})  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) { l.sugar.Errorw(msg, keysAndValues...) }
func (l *Logger) Fatalw(msg string, keysAndValues ...interface{}) { l.sugar.Fatalw(msg, keysAndValues...) }

// Debug логирует отладочное сообщение в стиле printf
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debug(sprintf(format, args...)) }

// Info логирует информационное сообщение в стиле printf
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Info(sprintf(format, args...)) }

// Warn логирует предупреждение в стиле printf
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warn(sprintf(format, args...)) }

// Error логирует ошибку в стиле printf
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Error(sprintf(format, args...)) }

// Fatal логирует ошибку и завершает процесс
func (l *Logger) Fatal(format string, args ...interface{}) { l.sugar.Fatal(sprintf(format, args...)) }

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Package logger builds the slog logger shared by every command, backed by a zap core.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Config holds the logger configuration.
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	AddSource bool
	Writer    io.Writer
}

// DefaultConfig logs info and above as text to stderr so stdout stays free for reports.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "text",
		Writer: os.Stderr,
	}
}

// LoadConfig overlays XPROBE_LOG_LEVEL, XPROBE_LOG_FORMAT and XPROBE_LOG_SOURCE on the defaults.
func LoadConfig() Config {
	cfg := DefaultConfig()
	if level, ok := ParseLevel(os.Getenv("XPROBE_LOG_LEVEL")); ok {
		cfg.Level = level
	}
	if format := strings.ToLower(os.Getenv("XPROBE_LOG_FORMAT")); format == "text" || format == "json" {
		cfg.Format = format
	}
	if v := os.Getenv("XPROBE_LOG_SOURCE"); v != "" {
		if addSource, err := strconv.ParseBool(v); err == nil {
			cfg.AddSource = addSource
		}
	}
	return cfg
}

// ParseLevel accepts level names (case-insensitive) or a numeric slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return 0, false
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return slog.Level(n), true
}

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(encoder(cfg.Format), zapcore.AddSync(w), zapLevel(cfg.Level))
	return slog.New(zapslog.NewHandler(core, zapslog.WithCaller(cfg.AddSource)))
}

func encoder(format string) zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

// zapLevel maps a slog level onto the zap level zapslog checks it against.
func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

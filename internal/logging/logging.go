// Package logging builds the process logger: zap, writing JSON or console
// lines to stderr and optionally to a size-rotated file.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects the line encoder.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// FileConfig configures the rotated log file. An empty Filename disables it.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config describes the logger to build.
type Config struct {
	Level  string
	Format Format
	File   FileConfig
}

// DefaultConfig logs info and above as JSON to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatJSON}
}

// New builds a logger from cfg. The returned cleanup flushes buffered
// entries and closes the log file; call it once on exit.
func New(cfg Config) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return nil, nil, errors.Wrapf(err, "parse log level %q", cfg.Level)
	}

	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	outputs := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	var file *lumberjack.Logger
	if cfg.File.Filename != "" {
		file = newFileWriter(cfg.File)
		outputs = append(outputs, zapcore.AddSync(file))
	}

	core := zapcore.NewCore(encoder, zap.CombineWriteSyncers(outputs...), level)
	lg := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	cleanup := func() {
		_ = lg.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return lg, cleanup, nil
}

func newEncoder(format Format) (zapcore.Encoder, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	switch Format(strings.ToLower(string(format))) {
	case FormatJSON, "":
		return zapcore.NewJSONEncoder(encCfg), nil
	case FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg), nil
	default:
		return nil, errors.Newf("unknown log format %q", format)
	}
}

func newFileWriter(cfg FileConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		LocalTime:  true,
	}
}

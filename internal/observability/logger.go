// Package observability owns the process-wide CLI logger.
//
// Diagnostics go to stderr through CLILogger; human-readable reports are
// printed to stdout by the commands themselves.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	ProfileConsole    = "console"
	ProfileStructured = "structured"
)

// CLILogger is the logger used by commands. It is a no-op until one of the
// Init functions runs.
var CLILogger = zap.NewNop()

// Options configures InitLogger.
type Options struct {
	Service string
	// Level is one of debug, info, warn, error.
	Level string
	// Profile is console (human) or structured (JSON).
	Profile string
}

// InitCLILogger installs a console logger for service, at debug level when
// verbose is set and info otherwise.
func InitCLILogger(service string, verbose bool) {
	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := NewLogger(Options{Service: service, Level: level, Profile: ProfileConsole})
	if err != nil {
		return
	}
	CLILogger = logger
}

// InitLogger replaces CLILogger according to opts.
func InitLogger(opts Options) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	_ = CLILogger.Sync()
	CLILogger = logger
	return nil
}

// NewLogger builds a stderr logger from opts.
func NewLogger(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(opts.Profile)) {
	case "", ProfileConsole:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = ""
		cfg.CallerKey = ""
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !isTerminal(os.Stderr) {
			cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(cfg)
	case ProfileStructured:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	default:
		return nil, fmt.Errorf("unknown logging profile %q (want %s or %s)", opts.Profile, ProfileConsole, ProfileStructured)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	logger := zap.New(core)
	if opts.Service != "" && strings.EqualFold(opts.Profile, ProfileStructured) {
		logger = logger.With(zap.String("service", opts.Service))
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

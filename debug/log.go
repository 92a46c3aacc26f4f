package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger  = zap.NewNop()
	sugar   = logger.Sugar()
	mu      sync.Mutex
	enabled bool
)

// Enable starts debug logging to ~/.config/go-sostenuto/debug.log
func Enable() error {
	homeDir, _ := os.UserHomeDir()
	return EnableFile(filepath.Join(homeDir, ".config", "go-sostenuto", "debug.log"))
}

// EnableFile starts debug logging to path, truncating it.
func EnableFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	// zap appends; start each session with an empty file
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	logger = l
	sugar = l.Sugar()
	enabled = true

	logger.Named("debug").Debug("=== Debug logging started ===")
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		_ = logger.Sync()
	}
	logger = zap.NewNop()
	sugar = logger.Sugar()
	enabled = false
}

// L returns the current structured logger (a no-op logger when disabled).
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	mu.Lock()
	s, on := sugar, enabled
	mu.Unlock()

	if !on {
		return
	}
	s.Named(category).Debugf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("debug logger should enable debug level")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("production logger should not enable debug level")
		}
		_ = logger.Sync()
	})
}

func TestNewCLILogger(t *testing.T) {
	tests := []struct {
		debug bool
		level zapcore.Level
		want  bool
	}{
		{false, zapcore.InfoLevel, false},
		{false, zapcore.WarnLevel, true},
		{true, zapcore.DebugLevel, true},
	}
	for _, tt := range tests {
		logger, err := NewCLILogger(tt.debug)
		if err != nil {
			t.Fatalf("NewCLILogger(%v) error: %v", tt.debug, err)
		}
		if got := logger.Core().Enabled(tt.level); got != tt.want {
			t.Errorf("NewCLILogger(%v) enables %s = %v, want %v", tt.debug, tt.level, got, tt.want)
		}
	}
}

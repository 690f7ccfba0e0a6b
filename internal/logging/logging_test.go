package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.WarnLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" error ": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		logger, err := New(in)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", in, err)
		}
		if !logger.Core().Enabled(want) {
			t.Fatalf("New(%q): expected %s enabled", in, want)
		}
		if want > zapcore.DebugLevel && logger.Core().Enabled(want-1) {
			t.Fatalf("New(%q): expected %s disabled", in, want-1)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected a no-op logger")
	}
}

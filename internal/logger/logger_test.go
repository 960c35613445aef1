package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want *zapcore.Level
	}{
		{"debug", levelPtr(zapcore.DebugLevel)},
		{"warn", levelPtr(zapcore.WarnLevel)},
		{"ERROR", levelPtr(zapcore.ErrorLevel)},
		{"loud", nil},
	}
	for _, tt := range tests {
		got := parseLevel(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("parseLevel(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestNopWith(t *testing.T) {
	log := NewNop().With(String("component", "test"))
	log.Info("discarded", Int("n", 1), Bool("ok", true))
	if err := log.Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}
}

func levelPtr(l zapcore.Level) *zapcore.Level { return &l }

package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" DEBUG ", LevelDebug},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })

	SetLevel(LevelError)
	assert.Equal(t, zapcore.ErrorLevel, atomLevel.Level())

	SetLevel(LevelDebug)
	assert.Equal(t, zapcore.DebugLevel, atomLevel.Level())
}

func TestLoggingDoesNotPanic(t *testing.T) {
	Configure(LevelDebug, "json")
	t.Cleanup(func() { Configure(LevelInfo, "console") })

	assert.NotPanics(t, func() {
		Debug("debug line", "k", 1)
		Info("info line", "k", "v")
		Error("error line", errors.New("boom"), "k", true)
		Sync()
	})
}

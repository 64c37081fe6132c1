package infrastructure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/infrastructure"
)

func TestNewZapLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			lc := fxtest.NewLifecycle(t)
			cfg := &config.Config{LogLevel: tt.level}

			logger, err := infrastructure.NewZapLogger(infrastructure.NewZapLoggerParams{Cfg: cfg, LC: lc})
			require.NoError(t, err)

			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.muted))
		})
	}
}

func TestNewZapLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := &config.Config{LogLevel: "loud"}

	_, err := infrastructure.NewZapLogger(infrastructure.NewZapLoggerParams{Cfg: cfg, LC: fxtest.NewLifecycle(t)})
	assert.Error(t, err)
}

// Package infrastructure provides core infrastructure components and their Fx modules.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-voice-mesh/internal/config"
	pkginfra "github.com/Raikerian/go-voice-mesh/pkg/infrastructure"
)

// LoggerModule provides logging infrastructure.
var LoggerModule = fx.Module("logger",
	fx.Provide(NewZapLogger),
)

// NewZapLoggerParams holds dependencies for NewZapLogger.
type NewZapLoggerParams struct {
	fx.In
	Cfg *config.Config
	LC  fx.Lifecycle
}

// NewZapLogger builds a production logger at the configured level. Debug
// switches to the development encoder.
func NewZapLogger(params NewZapLoggerParams) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(params.Cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", params.Cfg.LogLevel, err)
	}

	zapConfig := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}

	logger = logger.With(zap.String("username", params.Cfg.Identity.Username))

	params.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Syncing a terminal stderr fails with EINVAL or ENOTTY.
			if err := logger.Sync(); err != nil &&
				!errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
				return err
			}
			return nil
		},
	})

	return logger, nil
}

// NewFxLogger routes Fx's own events through the application logger.
func NewFxLogger(logger *zap.Logger) fxevent.Logger {
	return pkginfra.NewFxLoggerAdapter(logger.Named("fx"))
}

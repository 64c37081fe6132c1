package device

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/internal/config"
)

// Module provides the audio device driving the mixer.
var Module = fx.Module("device",
	fx.Provide(func(logger *zap.Logger, cfg *config.Config, mixer *conference.Mixer) (Device, error) {
		return New(logger.Named("device"), cfg, mixer)
	}),
)

package signaling

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/config"
)

// Module provides the signaling client.
var Module = fx.Module("signaling",
	fx.Provide(func(logger *zap.Logger, cfg *config.Config) *Client {
		return NewClient(logger.Named("signaling"), cfg)
	}),
)

package conference

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/metrics"
)

// Module provides the conference mixer.
var Module = fx.Module("conference",
	fx.Provide(NewMixer),
)

// MixerParams holds dependencies for NewMixer.
type MixerParams struct {
	fx.In
	Logger  *zap.Logger
	Cfg     *config.Config
	Metrics *metrics.Metrics
	LC      fx.Lifecycle
}

// NewMixer creates the mixer and closes its links on shutdown.
func NewMixer(params MixerParams) (*Mixer, error) {
	m, err := New(params.Logger.Named("conference"), params.Cfg, params.Metrics)
	if err != nil {
		return nil, err
	}

	params.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.Close()
		},
	})
	return m, nil
}

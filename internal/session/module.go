package session

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/metrics"
	"github.com/Raikerian/go-voice-mesh/internal/signaling"
)

// Module provides the session wired to the mixer and the signaling client.
var Module = fx.Module("session",
	fx.Provide(NewSession),
)

// SessionParams holds dependencies for NewSession.
type SessionParams struct {
	fx.In
	Logger  *zap.Logger
	Cfg     *config.Config
	Metrics *metrics.Metrics
	Mixer   *conference.Mixer
	Client  *signaling.Client
}

// NewSession builds a session whose links run over ICE.
func NewSession(params SessionParams) (*Session, error) {
	logger := params.Logger.Named("session")
	factory := NewICELinkFactory(logger, params.Cfg, params.Metrics, params.Client.LocalID())
	return New(logger, params.Cfg, params.Mixer, params.Client, factory)
}

var (
	_ Table             = (*conference.Mixer)(nil)
	_ Signaler          = (*signaling.Client)(nil)
	_ signaling.Handler = (*Session)(nil)
)

package session

import (
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/codec"
	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/metrics"
	"github.com/Raikerian/go-voice-mesh/internal/peer"
	"github.com/Raikerian/go-voice-mesh/internal/transport"
)

// NewICELinkFactory builds links that run over ICE. The participant whose id
// sorts first takes the controlling role.
func NewICELinkFactory(logger *zap.Logger, cfg *config.Config, m *metrics.Metrics, localID string) LinkFactory {
	linkCfg := peer.ConfigFrom(cfg)

	return func(remoteID string, observer peer.Observer) (*peer.Link, error) {
		return peer.NewLink(peer.Params{
			ID:       remoteID,
			Config:   linkCfg,
			Logger:   logger,
			Metrics:  m,
			Observer: observer,
			NewCodec: func() (codec.Codec, error) {
				return codec.New(cfg.Link.Codec, cfg.Format(), cfg.Link.Bitrate)
			},
			NewTransport: func(events transport.Events) (peer.Transport, error) {
				return transport.NewICE(transport.ICEConfig{
					STUNServers: cfg.Transport.STUNServers,
					Controlling: localID < remoteID,
				}, events, logger.With(zap.String("peer_id", remoteID)))
			},
		})
	}
}

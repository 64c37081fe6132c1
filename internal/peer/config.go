package peer

import (
	"fmt"
	"time"

	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

// Config sizes and tunes one link. Sample counts are per channel.
type Config struct {
	Format          audio.Format
	StreamID        uint8
	Capacity        int
	Headroom        int
	MaxZeroReads    int
	PingInterval    time.Duration
	DisconnectGrace time.Duration
}

// ConfigFrom derives a link config from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Format:          cfg.Format(),
		StreamID:        cfg.Link.StreamID,
		Capacity:        cfg.CapacitySamples(),
		Headroom:        cfg.HeadroomSamples(),
		MaxZeroReads:    cfg.Jitter.MaxZeroReads,
		PingInterval:    cfg.Link.PingInterval,
		DisconnectGrace: cfg.Link.DisconnectGrace,
	}
}

func (c Config) validate() error {
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, c.Capacity)
	case c.Headroom < 0 || c.Headroom > c.Capacity:
		return fmt.Errorf("%w: headroom %d outside [0, %d]", ErrInvalidConfig, c.Headroom, c.Capacity)
	case c.MaxZeroReads <= 0:
		return fmt.Errorf("%w: max zero reads %d", ErrInvalidConfig, c.MaxZeroReads)
	case c.PingInterval <= 0:
		return fmt.Errorf("%w: ping interval %s", ErrInvalidConfig, c.PingInterval)
	case c.Format.Channels > audio.MaxChannels:
		return fmt.Errorf("%w: %d channels", ErrInvalidConfig, c.Format.Channels)
	}
	return nil
}

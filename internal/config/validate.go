package config

import (
	"fmt"
	"slices"
)

var (
	backends = []string{"malgo", "null"}
	codecs   = []string{"opus", "pcm16"}
)

// Validate reports the first inconsistency, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if err := c.Format().Validate(); err != nil {
		return fmt.Errorf("%w: audio: %w", ErrInvalid, err)
	}

	switch {
	case !slices.Contains(backends, c.Audio.Backend):
		return fmt.Errorf("%w: audio.backend %q", ErrInvalid, c.Audio.Backend)
	case !slices.Contains(codecs, c.Link.Codec):
		return fmt.Errorf("%w: link.codec %q", ErrInvalid, c.Link.Codec)
	case c.Jitter.CapacityFrames <= 0:
		return fmt.Errorf("%w: jitter.capacity_frames must be positive", ErrInvalid)
	case c.Jitter.HeadroomFrames < 0 || c.Jitter.HeadroomFrames > c.Jitter.CapacityFrames:
		return fmt.Errorf("%w: jitter.headroom_frames must be within [0, capacity_frames]", ErrInvalid)
	case c.Jitter.MaxZeroReads <= 0:
		return fmt.Errorf("%w: jitter.max_zero_reads must be positive", ErrInvalid)
	case c.Link.PingInterval <= 0:
		return fmt.Errorf("%w: link.ping_interval must be positive", ErrInvalid)
	case c.Link.DisconnectGrace < 0:
		return fmt.Errorf("%w: link.disconnect_grace must not be negative", ErrInvalid)
	case c.Conference.MaxPeers <= 0:
		return fmt.Errorf("%w: conference.max_peers must be positive", ErrInvalid)
	case c.Conference.GainCacheSize <= 0:
		return fmt.Errorf("%w: conference.gain_cache_size must be positive", ErrInvalid)
	case c.Signaling.PendingCandidates <= 0:
		return fmt.Errorf("%w: signaling.pending_candidates must be positive", ErrInvalid)
	}

	return nil
}

package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

// Defaults for unset fields.
const (
	DefaultLogLevel          = "info"
	DefaultHTTPURL           = "http://localhost:5000"
	DefaultWebSocketURL      = "ws://localhost:5000"
	DefaultDialTimeout       = 10 * time.Second
	DefaultPendingCandidates = 64
	DefaultBackend           = "malgo"
	DefaultCodec             = "opus"
	DefaultBitrate           = 64_000
	DefaultCapacityFrames    = 8
	DefaultHeadroomFrames    = 4
	DefaultMaxZeroReads      = 10
	DefaultPingInterval      = 250 * time.Millisecond
	DefaultDisconnectGrace   = 5 * time.Second
	DefaultMaxPeers          = 8
	DefaultGainCacheSize     = 64
	DefaultSTUNServer        = "stun:stun.stunprotocol.org:3478"
)

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	setDefault(&c.LogLevel, DefaultLogLevel)

	if c.Identity.Username == "" {
		c.Identity.Username = fmt.Sprintf("peer-%s", uuid.NewString())
	}

	setDefault(&c.Signaling.HTTPURL, DefaultHTTPURL)
	setDefault(&c.Signaling.WebSocketURL, DefaultWebSocketURL)
	setDefault(&c.Signaling.DialTimeout, DefaultDialTimeout)
	setDefault(&c.Signaling.PendingCandidates, DefaultPendingCandidates)

	setDefault(&c.Audio.Backend, DefaultBackend)
	setDefault(&c.Audio.SampleRate, audio.DefaultSampleRate)
	setDefault(&c.Audio.Channels, audio.DefaultChannels)
	setDefault(&c.Audio.FrameSize, audio.DefaultFrameSize)

	setDefault(&c.Jitter.CapacityFrames, DefaultCapacityFrames)
	setDefault(&c.Jitter.HeadroomFrames, DefaultHeadroomFrames)
	setDefault(&c.Jitter.MaxZeroReads, DefaultMaxZeroReads)

	setDefault(&c.Link.Codec, DefaultCodec)
	setDefault(&c.Link.Bitrate, DefaultBitrate)
	setDefault(&c.Link.PingInterval, DefaultPingInterval)
	setDefault(&c.Link.DisconnectGrace, DefaultDisconnectGrace)

	if len(c.Transport.STUNServers) == 0 {
		c.Transport.STUNServers = []string{DefaultSTUNServer}
	}

	setDefault(&c.Conference.MaxPeers, DefaultMaxPeers)
	setDefault(&c.Conference.GainCacheSize, DefaultGainCacheSize)
}

// Format returns the stream format described by the audio section.
func (c *Config) Format() audio.Format {
	return audio.Format{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		FrameSize:  c.Audio.FrameSize,
	}
}

// CapacitySamples is the jitter buffer size in samples per channel.
func (c *Config) CapacitySamples() int {
	return c.Jitter.CapacityFrames * c.Audio.FrameSize
}

// HeadroomSamples is the playback headroom in samples per channel.
func (c *Config) HeadroomSamples() int {
	return c.Jitter.HeadroomFrames * c.Audio.FrameSize
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

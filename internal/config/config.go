package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VOICEMESH_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// IdentityConfig stores the local participant's credentials.
type IdentityConfig struct {
	Username string `yaml:"username" env:"USERNAME, overwrite"`
	Password string `yaml:"password" env:"PASSWORD, overwrite"`
}

// SignalingConfig stores the rendezvous server endpoints.
type SignalingConfig struct {
	HTTPURL           string        `yaml:"http_url" env:"HTTP_URL, overwrite"`
	WebSocketURL      string        `yaml:"websocket_url" env:"WEBSOCKET_URL, overwrite"`
	DialTimeout       time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT, overwrite"`
	PendingCandidates int           `yaml:"pending_candidates" env:"PENDING_CANDIDATES, overwrite"`
}

// AudioConfig stores the local device and stream format.
type AudioConfig struct {
	Backend     string  `yaml:"backend" env:"BACKEND, overwrite"`
	SampleRate  int     `yaml:"sample_rate" env:"SAMPLE_RATE, overwrite"`
	Channels    int     `yaml:"channels" env:"CHANNELS, overwrite"`
	FrameSize   int     `yaml:"frame_size" env:"FRAME_SIZE, overwrite"`
	MonitorGain float32 `yaml:"monitor_gain" env:"MONITOR_GAIN, overwrite"`
}

// JitterConfig sizes the per-peer playback buffer, in frames of audio.frame_size.
type JitterConfig struct {
	CapacityFrames int `yaml:"capacity_frames" env:"CAPACITY_FRAMES, overwrite"`
	HeadroomFrames int `yaml:"headroom_frames" env:"HEADROOM_FRAMES, overwrite"`
	MaxZeroReads   int `yaml:"max_zero_reads" env:"MAX_ZERO_READS, overwrite"`
}

// LinkConfig stores per-peer protocol settings.
type LinkConfig struct {
	Codec           string        `yaml:"codec" env:"CODEC, overwrite"`
	Bitrate         int           `yaml:"bitrate" env:"BITRATE, overwrite"`
	StreamID        uint8         `yaml:"stream_id" env:"STREAM_ID, overwrite"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"PING_INTERVAL, overwrite"`
	DisconnectGrace time.Duration `yaml:"disconnect_grace" env:"DISCONNECT_GRACE, overwrite"`
}

// TransportConfig stores NAT traversal settings.
type TransportConfig struct {
	STUNServers []string `yaml:"stun_servers" env:"STUN_SERVERS, overwrite"`
}

// ConferenceConfig bounds the peer table.
type ConferenceConfig struct {
	MaxPeers      int `yaml:"max_peers" env:"MAX_PEERS, overwrite"`
	GainCacheSize int `yaml:"gain_cache_size" env:"GAIN_CACHE_SIZE, overwrite"`
}

// MetricsConfig stores the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR, overwrite"`
}

// Config stores the application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level" env:"LOG_LEVEL, overwrite"`
	Identity   IdentityConfig   `yaml:"identity" env:", prefix=IDENTITY_"`
	Signaling  SignalingConfig  `yaml:"signaling" env:", prefix=SIGNALING_"`
	Audio      AudioConfig      `yaml:"audio" env:", prefix=AUDIO_"`
	Jitter     JitterConfig     `yaml:"jitter" env:", prefix=JITTER_"`
	Link       LinkConfig       `yaml:"link" env:", prefix=LINK_"`
	Transport  TransportConfig  `yaml:"transport" env:", prefix=TRANSPORT_"`
	Conference ConferenceConfig `yaml:"conference" env:", prefix=CONFERENCE_"`
	Metrics    MetricsConfig    `yaml:"metrics" env:", prefix=METRICS_"`
}

// LoadConfig loads the configuration from the given file path, then applies
// a .env file if present and VOICEMESH_* environment overrides. A missing
// config file is not an error.
func LoadConfig(filePath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Load(context.Background(), filePath, envconfig.OsLookuper())
}

// Load builds a configuration from the file at filePath and the lookuper.
func Load(ctx context.Context, filePath string, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

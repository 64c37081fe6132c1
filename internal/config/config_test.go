package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-voice-mesh/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.True(t, strings.HasPrefix(cfg.Identity.Username, "peer-"))
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.Equal(t, 480, cfg.Audio.FrameSize)
	assert.Equal(t, 3840, cfg.CapacitySamples())
	assert.Equal(t, 1920, cfg.HeadroomSamples())
	assert.Equal(t, 10, cfg.Jitter.MaxZeroReads)
	assert.Equal(t, []string{config.DefaultSTUNServer}, cfg.Transport.STUNServers)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
identity:
  username: alice
  password: secret
audio:
  backend: "null"
  frame_size: 960
link:
  codec: pcm16
  ping_interval: 100ms
conference:
  max_peers: 4
`)

	env := envconfig.MapLookuper(map[string]string{
		"VOICEMESH_IDENTITY_USERNAME":      "bob",
		"VOICEMESH_TRANSPORT_STUN_SERVERS": "stun:a.example:3478,stun:b.example:3478",
		"VOICEMESH_METRICS_ADDR":           ":9100",
	})

	cfg, err := config.Load(context.Background(), path, env)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "bob", cfg.Identity.Username)
	assert.Equal(t, "secret", cfg.Identity.Password)
	assert.Equal(t, "null", cfg.Audio.Backend)
	assert.Equal(t, 960, cfg.Audio.FrameSize)
	assert.Equal(t, "pcm16", cfg.Link.Codec)
	assert.Equal(t, 100*time.Millisecond, cfg.Link.PingInterval)
	assert.Equal(t, 4, cfg.Conference.MaxPeers)
	assert.Equal(t, []string{"stun:a.example:3478", "stun:b.example:3478"}, cfg.Transport.STUNServers)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "audio: [")
	_, err := config.Load(context.Background(), path, envconfig.MapLookuper(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"headroom beyond capacity", func(c *config.Config) { c.Jitter.HeadroomFrames = c.Jitter.CapacityFrames + 1 }},
		{"unknown codec", func(c *config.Config) { c.Link.Codec = "mp3" }},
		{"unknown backend", func(c *config.Config) { c.Audio.Backend = "pulse" }},
		{"negative channels", func(c *config.Config) { c.Audio.Channels = -1 }},
		{"negative grace", func(c *config.Config) { c.Link.DisconnectGrace = -time.Second }},
		{"negative zero reads", func(c *config.Config) { c.Jitter.MaxZeroReads = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.ApplyDefaults()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalid)
		})
	}
}

// Package device drives the conference from a local audio device clock.
package device

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/internal/config"
)

// Backend names.
const (
	BackendMalgo = "malgo"
	BackendNull  = "null"
)

// Processor consumes captured frames and fills playback frames in place.
type Processor interface {
	ProcessSamples(info conference.StreamInfo, buffers [][]float32, count int)
}

// Device runs the processor from its own clock once started.
type Device interface {
	Start(ctx context.Context) error
	Stop() error
}

// New creates the device selected by audio.backend.
func New(logger *zap.Logger, cfg *config.Config, p Processor) (Device, error) {
	switch cfg.Audio.Backend {
	case BackendMalgo:
		return NewMalgo(logger, cfg.Format(), p), nil
	case BackendNull:
		return NewNull(logger, cfg.Format(), p), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
}

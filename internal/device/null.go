package device

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

// Null captures silence and discards playback on a frame-rate ticker.
type Null struct {
	logger    *zap.Logger
	format    audio.Format
	processor Processor

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNull creates a headless device.
func NewNull(logger *zap.Logger, format audio.Format, p Processor) *Null {
	return &Null{logger: logger, format: format, processor: p}
}

// Start begins ticking. It is a no-op if already started.
func (n *Null) Start(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.run(ctx, n.done)

	n.logger.Info("Null audio device started", zap.Duration("frame", n.format.FrameDuration()))
	return nil
}

// Stop halts ticking and waits for the last cycle to finish.
func (n *Null) Stop() error {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (n *Null) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	buffers := audio.NewPlanar(n.format.Channels, n.format.FrameSize)
	ticker := time.NewTicker(n.format.FrameDuration())
	defer ticker.Stop()

	var sampleID int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, ch := range buffers {
			clear(ch)
		}
		n.processor.ProcessSamples(conference.StreamInfo{SampleID: sampleID}, buffers, n.format.FrameSize)
		sampleID += int64(n.format.FrameSize)
	}
}

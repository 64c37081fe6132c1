package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

const (
	bytesPerSample = 4 // f32
	chunkFrames    = 4 // callback chunk, in device frames of format.FrameSize
)

// Malgo is a full-duplex device on miniaudio. Capture and playback share one
// callback, so the local sample id advances on a single clock.
type Malgo struct {
	logger    *zap.Logger
	format    audio.Format
	processor Processor

	mu       sync.Mutex
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	planar   [][]float32
	sampleID int64
}

// NewMalgo creates an unopened duplex device.
func NewMalgo(logger *zap.Logger, format audio.Format, p Processor) *Malgo {
	return &Malgo{
		logger:    logger,
		format:    format,
		processor: p,
		planar:    audio.NewPlanar(format.Channels, format.FrameSize*chunkFrames),
	}
}

// Start opens the default capture and playback devices and starts them.
func (m *Malgo) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("miniaudio", zap.String("message", message))
	})
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Duplex)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(m.format.Channels)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(m.format.Channels)
	cfg.SampleRate = uint32(m.format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(m.format.FrameSize)
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: m.onData})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to initialize duplex device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.mctx = mctx
	m.device = device
	m.logger.Info("Audio device started",
		zap.Int("sample_rate", m.format.SampleRate),
		zap.Int("channels", m.format.Channels),
		zap.Int("frame_size", m.format.FrameSize))
	return nil
}

// Stop stops and releases the device.
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}

	err := m.device.Stop()
	m.device.Uninit()
	m.device = nil

	if uerr := m.mctx.Uninit(); uerr != nil && err == nil {
		err = uerr
	}
	m.mctx.Free()
	m.mctx = nil

	if err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// onData runs on the miniaudio thread.
func (m *Malgo) onData(out, in []byte, frameCount uint32) {
	channels := m.format.Channels
	stride := channels * bytesPerSample
	chunk := len(m.planar[0])

	for done := 0; done < int(frameCount); {
		n := min(int(frameCount)-done, chunk)
		readF32(m.planar, in, done*stride, n, channels)
		m.processor.ProcessSamples(conference.StreamInfo{SampleID: m.sampleID}, m.planar, n)
		writeF32(out, done*stride, m.planar, n, channels)

		m.sampleID += int64(n)
		done += n
	}
}

// readF32 deinterleaves n frames of little-endian f32 from src at off into
// planar. Missing input is read as silence.
func readF32(planar [][]float32, src []byte, off, n, channels int) {
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			pos := off + (i*channels+ch)*bytesPerSample
			var v float32
			if pos+bytesPerSample <= len(src) {
				v = math.Float32frombits(binary.LittleEndian.Uint32(src[pos:]))
			}
			planar[ch][i] = v
		}
	}
}

// writeF32 interleaves n planar frames into dst at off, clamped to [-1, 1].
func writeF32(dst []byte, off int, planar [][]float32, n, channels int) {
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			pos := off + (i*channels+ch)*bytesPerSample
			if pos+bytesPerSample > len(dst) {
				return
			}
			binary.LittleEndian.PutUint32(dst[pos:], math.Float32bits(audio.Clamp(planar[ch][i])))
		}
	}
}

package codec

import (
	"fmt"
	"sync"

	"layeh.com/gopus"

	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

const (
	// DefaultBitrate is used when the configured bitrate is zero.
	DefaultBitrate = 64_000

	maxOpusPacket = 4000
)

// Opus wraps a gopus encoder and decoder pair.
type Opus struct {
	format audio.Format

	encMu   sync.Mutex
	encoder *gopus.Encoder
	encBuf  []int16

	decMu   sync.Mutex
	decoder *gopus.Decoder
}

// NewOpus creates an Opus codec. The frame size must be one Opus accepts
// (2.5, 5, 10, 20, 40 or 60 ms).
func NewOpus(format audio.Format, bitrate int) (*Opus, error) {
	if !validOpusFrame(format) {
		return nil, fmt.Errorf("codec: opus does not support %d samples at %d Hz", format.FrameSize, format.SampleRate)
	}
	if format.Channels > 2 {
		return nil, fmt.Errorf("codec: opus supports at most 2 channels, got %d", format.Channels)
	}

	encoder, err := gopus.NewEncoder(format.SampleRate, format.Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	encoder.SetBitrate(bitrate)

	decoder, err := gopus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &Opus{
		format:  format,
		encoder: encoder,
		encBuf:  make([]int16, format.FrameSamples()),
		decoder: decoder,
	}, nil
}

// Encode implements Codec.
func (c *Opus) Encode(pcm []float32) []byte {
	if len(pcm) == 0 || len(pcm)%c.format.Channels != 0 {
		return nil
	}

	c.encMu.Lock()
	defer c.encMu.Unlock()

	c.encBuf = audio.FloatToPCMInt16(c.encBuf, pcm)
	out, err := c.encoder.Encode(c.encBuf, len(pcm)/c.format.Channels, maxOpusPacket)
	if err != nil {
		return nil
	}
	return out
}

// Decode implements Codec.
func (c *Opus) Decode(payload []byte, frameSize int) []float32 {
	if len(payload) == 0 || frameSize <= 0 {
		return nil
	}

	c.decMu.Lock()
	pcm, err := c.decoder.Decode(payload, frameSize, false)
	c.decMu.Unlock()
	if err != nil || len(pcm) == 0 {
		return nil
	}
	return audio.PCMInt16ToFloat(nil, pcm)
}

func validOpusFrame(f audio.Format) bool {
	if f.SampleRate%400 != 0 {
		return false
	}
	unit := f.SampleRate / 400 // 2.5 ms
	for _, mult := range []int{1, 2, 4, 8, 16, 24} {
		if f.FrameSize == unit*mult {
			return true
		}
	}
	return false
}

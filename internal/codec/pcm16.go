package codec

import (
	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

// PCM16 carries samples uncompressed as little-endian int16.
type PCM16 struct {
	channels int
}

// NewPCM16 creates a PCM16 codec.
func NewPCM16(channels int) *PCM16 {
	return &PCM16{channels: channels}
}

// Encode implements Codec.
func (c *PCM16) Encode(pcm []float32) []byte {
	if len(pcm) == 0 || len(pcm)%c.channels != 0 {
		return nil
	}
	samples := audio.FloatToPCMInt16(nil, pcm)
	return audio.PCMInt16ToLE(make([]byte, 0, len(samples)*2), samples)
}

// Decode implements Codec.
func (c *PCM16) Decode(payload []byte, frameSize int) []float32 {
	frameBytes := 2 * c.channels
	if len(payload) == 0 || len(payload)%frameBytes != 0 || len(payload)/frameBytes > frameSize {
		return nil
	}
	samples := audio.LEToPCMInt16(nil, payload)
	return audio.PCMInt16ToFloat(nil, samples)
}

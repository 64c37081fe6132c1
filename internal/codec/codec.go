// Package codec adapts audio codecs to the interleaved float frames used by peer links.
//
// Codecs report failure by returning an empty result. Callers in the real-time
// path treat that as a dropped frame.
package codec

import (
	"errors"
	"fmt"

	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

// Codec names accepted by New.
const (
	NameOpus  = "opus"
	NamePCM16 = "pcm16"
)

// ErrUnknownCodec is returned by New for an unsupported codec name.
var ErrUnknownCodec = errors.New("codec: unknown codec")

// Codec encodes interleaved float frames to payload bytes and back.
type Codec interface {
	// Encode returns the payload for one interleaved frame, or nil on failure.
	Encode(pcm []float32) []byte
	// Decode returns at most frameSize interleaved frames, or nil on failure.
	Decode(payload []byte, frameSize int) []float32
}

// New creates a codec instance for the given format. Instances keep
// per-stream state and must not be shared between links.
func New(name string, format audio.Format, bitrate int) (Codec, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}

	switch name {
	case NameOpus:
		return NewOpus(format, bitrate)
	case NamePCM16:
		return NewPCM16(format.Channels), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

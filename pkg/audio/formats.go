// Package audio provides sample format helpers shared by the codec, device and mixer layers.
package audio

import (
	"fmt"
	"time"
)

// Defaults for the conference stream.
const (
	DefaultSampleRate = 48_000 // Hz
	DefaultChannels   = 2      // stereo
	DefaultFrameSize  = 480    // samples per channel (10 ms)

	// MaxChannels is bounded by the one-byte channel count on the wire.
	MaxChannels = 255
)

// Format describes a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	FrameSize  int // samples per channel in one frame
}

// DefaultFormat returns 48 kHz stereo with 10 ms frames.
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		FrameSize:  DefaultFrameSize,
	}
}

// FrameDuration is the wall-clock length of one frame.
func (f Format) FrameDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.FrameSize) * time.Second / time.Duration(f.SampleRate)
}

// FrameSamples is the interleaved sample count of one frame.
func (f Format) FrameSamples() int {
	return f.FrameSize * f.Channels
}

// Validate checks that the format is usable.
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	case f.Channels <= 0 || f.Channels > MaxChannels:
		return fmt.Errorf("invalid channel count %d", f.Channels)
	case f.FrameSize <= 0:
		return fmt.Errorf("invalid frame size %d", f.FrameSize)
	}
	return nil
}

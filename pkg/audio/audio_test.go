package audio_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

func TestFormat(t *testing.T) {
	f := audio.DefaultFormat()
	assert.Equal(t, 10*time.Millisecond, f.FrameDuration())
	assert.Equal(t, 960, f.FrameSamples())
	assert.NoError(t, f.Validate())

	assert.Error(t, audio.Format{SampleRate: 48000, Channels: 0, FrameSize: 480}.Validate())
	assert.Error(t, audio.Format{SampleRate: 0, Channels: 1, FrameSize: 480}.Validate())
	assert.Error(t, audio.Format{SampleRate: 48000, Channels: 1, FrameSize: 0}.Validate())
}

func TestFloatToInt16Clamps(t *testing.T) {
	assert.Equal(t, int16(32767), audio.FloatToInt16(1.5))
	assert.Equal(t, int16(-32767), audio.FloatToInt16(-3))
	assert.Equal(t, int16(0), audio.FloatToInt16(0))
	assert.InDelta(t, 0.5, audio.Int16ToFloat(audio.FloatToInt16(0.5)), 1e-4)
}

func TestLittleEndianPCM(t *testing.T) {
	b := audio.PCMInt16ToLE(nil, []int16{1, -1, 256})
	assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}, b)
	assert.Equal(t, []int16{1, -1, 256}, audio.LEToPCMInt16(nil, append(b, 0x7f)))
}

func TestInterleaveDeinterleave(t *testing.T) {
	planar := [][]float32{{1, 2, 3}, {-1, -2, -3}}
	inter := audio.Interleave(nil, planar, 3, 2)
	if diff := cmp.Diff([]float32{1, -1, 2, -2, 3, -3}, inter); diff != "" {
		t.Fatalf("interleave mismatch (-want +got):\n%s", diff)
	}

	// Mono source duplicated into both output channels.
	inter = audio.Interleave(inter, [][]float32{{5, 6}}, 2, 2)
	assert.Equal(t, []float32{5, 5, 6, 6}, inter)

	out := audio.NewPlanar(2, 4)
	n := audio.Deinterleave(out, []float32{1, -1, 2, -2, 3, -3}, 2)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{1, 2, 3, 0}, out[0])
	assert.Equal(t, []float32{-1, -2, -3, 0}, out[1])
}

func TestScale(t *testing.T) {
	planar := [][]float32{{1, 2}, {3, 4}}
	audio.Scale(planar, 2, 0.5)
	assert.Equal(t, [][]float32{{0.5, 1}, {1.5, 2}}, planar)
	audio.Scale(planar, 1, 0)
	assert.Equal(t, [][]float32{{0, 1}, {0, 2}}, planar)
	assert.Equal(t, float32(1), audio.Clamp(3))
	assert.Equal(t, float32(-1), audio.Clamp(-3))
}

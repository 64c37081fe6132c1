package device

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

type recordingProcessor struct {
	mu     sync.Mutex
	ids    []int64
	counts []int
	add    float32
}

func (p *recordingProcessor) ProcessSamples(info conference.StreamInfo, buffers [][]float32, count int) {
	p.mu.Lock()
	p.ids = append(p.ids, info.SampleID)
	p.counts = append(p.counts, count)
	p.mu.Unlock()
	for _, ch := range buffers {
		for i := 0; i < count; i++ {
			ch[i] += p.add
		}
	}
}

func (p *recordingProcessor) IDs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.ids...)
}

func f32Bytes(values ...float32) []byte {
	out := make([]byte, 0, len(values)*4)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()

	cfg.Audio.Backend = BackendNull
	d, err := New(zap.NewNop(), cfg, &recordingProcessor{})
	require.NoError(t, err)
	assert.IsType(t, &Null{}, d)

	cfg.Audio.Backend = BackendMalgo
	d, err = New(zap.NewNop(), cfg, &recordingProcessor{})
	require.NoError(t, err)
	assert.IsType(t, &Malgo{}, d)

	cfg.Audio.Backend = "jack"
	_, err = New(zap.NewNop(), cfg, &recordingProcessor{})
	assert.Error(t, err)
}

func TestNullDeviceAdvancesSampleIDs(t *testing.T) {
	p := &recordingProcessor{}
	d := NewNull(zap.NewNop(), audio.Format{SampleRate: 48000, Channels: 1, FrameSize: 48}, p)

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return len(p.IDs()) >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())

	ids := p.IDs()
	for i, id := range ids {
		assert.EqualValues(t, i*48, id)
	}
}

func TestMalgoCallbackConvertsAndChunks(t *testing.T) {
	p := &recordingProcessor{add: 0.25}
	format := audio.Format{SampleRate: 48000, Channels: 2, FrameSize: 2}
	m := NewMalgo(zap.NewNop(), format, p)

	// 10 frames with a chunk of 8 frames.
	in := make([]float32, 0, 20)
	for i := 0; i < 10; i++ {
		in = append(in, float32(i)/20, -float32(i)/20)
	}
	in[0] = 0.9 // pushed past 1 by the processor
	out := make([]byte, 10*2*4)

	m.onData(out, f32Bytes(in...), 10)

	assert.Equal(t, []int64{0, 8}, p.IDs())
	assert.Equal(t, []int{8, 2}, p.counts)

	got := make([]float32, 20)
	for i := range got {
		got[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
	}
	assert.Equal(t, float32(1), got[0])
	for i := 1; i < 20; i++ {
		assert.InDelta(t, in[i]+0.25, got[i], 1e-6, "sample %d", i)
	}

	// Playback-only callbacks see silent capture.
	m.onData(make([]byte, 4*2*4), nil, 4)
	assert.Equal(t, []int64{0, 8, 10}, p.IDs())
}

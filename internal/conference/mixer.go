// Package conference routes captured audio to every peer link and mixes
// their aligned playback into the device buffer.
package conference

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/metrics"
	"github.com/Raikerian/go-voice-mesh/internal/peer"
	"github.com/Raikerian/go-voice-mesh/pkg/audio"
)

// StreamInfo describes one device cycle.
type StreamInfo struct {
	// SampleID is the local id of the first frame in the cycle.
	SampleID int64
}

// Link is the part of a peer link the mixer drives.
type Link interface {
	ID() string
	Send(pcm []float32, localSampleID int64)
	Read(out [][]float32, count int, local int64, gain float32) int
	Gain() float32
	SetGain(gain float32)
	Close() error
}

// Mixer owns a bounded table of peer links.
//
// ProcessSamples runs in the audio context and only takes the read side of
// the table lock.
type Mixer struct {
	logger      *zap.Logger
	metrics     *metrics.Metrics
	format      audio.Format
	monitorGain float32

	mu    sync.RWMutex
	slots []Link
	index map[string]int
	gains *lru.Cache[string, float32]

	// Capture re-blocking into codec frames, audio context only.
	scratch      []float32
	pending      int
	pendingStart int64
}

// New creates a mixer sized from cfg.
func New(logger *zap.Logger, cfg *config.Config, m *metrics.Metrics) (*Mixer, error) {
	gains, err := lru.New[string, float32](cfg.Conference.GainCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gain cache: %w", err)
	}

	format := cfg.Format()
	return &Mixer{
		logger:      logger,
		metrics:     m,
		format:      format,
		monitorGain: cfg.Audio.MonitorGain,
		slots:       make([]Link, cfg.Conference.MaxPeers),
		index:       make(map[string]int, cfg.Conference.MaxPeers),
		gains:       gains,
		scratch:     make([]float32, format.FrameSamples()),
	}, nil
}

// Add places link in a free slot. A gain previously set for its id is restored.
func (m *Mixer) Add(link Link) error {
	id := link.ID()

	m.mu.Lock()
	if _, ok := m.index[id]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicatePeer, id)
	}
	slot := -1
	for i, l := range m.slots {
		if l == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d peers", ErrTableFull, len(m.slots))
	}
	if gain, ok := m.gains.Get(id); ok {
		link.SetGain(gain)
	}
	m.slots[slot] = link
	m.index[id] = slot
	active := len(m.index)
	m.mu.Unlock()

	m.metrics.LinksActive.Set(float64(active))
	m.logger.Info("Peer added", zap.String("peer_id", id), zap.Int("slot", slot))
	return nil
}

// Lookup returns the link for id.
func (m *Mixer) Lookup(id string) (Link, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return m.slots[slot], true
}

// Remove frees the slot for id and closes its link.
func (m *Mixer) Remove(id string) error {
	m.mu.Lock()
	slot, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPeerNotFound, id)
	}
	link := m.slots[slot]
	m.slots[slot] = nil
	delete(m.index, id)
	active := len(m.index)
	m.mu.Unlock()

	m.metrics.LinksActive.Set(float64(active))
	m.metrics.ForgetPeer(id)
	m.logger.Info("Peer removed", zap.String("peer_id", id))

	if err := link.Close(); err != nil {
		return fmt.Errorf("failed to close link %s: %w", id, err)
	}
	return nil
}

// Peers returns the links in slot order.
func (m *Mixer) Peers() []Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Link, 0, len(m.index))
	for _, l := range m.slots {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// SetGain sets and remembers the playback gain for id. It reports whether a
// link with that id is currently in the table.
func (m *Mixer) SetGain(id string, gain float32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.gains.Add(id, gain)
	slot, ok := m.index[id]
	if ok {
		m.slots[slot].SetGain(gain)
	}
	return ok
}

// ProcessSamples runs one device cycle. buffers holds count captured frames
// per channel on entry and the mixed playback on return.
//
// The unmodified capture is fanned out to every link in codec-sized frames,
// buffers is scaled by the local monitor gain, then every link's aligned
// audio is added in at its gain.
func (m *Mixer) ProcessSamples(info StreamInfo, buffers [][]float32, count int) {
	if len(buffers) == 0 {
		return
	}
	for _, ch := range buffers {
		count = min(count, len(ch))
	}
	if count <= 0 {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	m.fanOut(info.SampleID, buffers, count)

	audio.Scale(buffers, count, m.monitorGain)

	for _, l := range m.slots {
		if l != nil {
			l.Read(buffers, count, info.SampleID, l.Gain())
		}
	}
}

// Close closes every link and empties the table.
func (m *Mixer) Close() error {
	m.mu.Lock()
	links := make([]Link, 0, len(m.index))
	for i, l := range m.slots {
		if l != nil {
			links = append(links, l)
			m.slots[i] = nil
		}
	}
	clear(m.index)
	m.mu.Unlock()

	m.metrics.LinksActive.Set(0)

	var errs []error
	for _, l := range links {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mixer) fanOut(start int64, buffers [][]float32, count int) {
	frame := m.format.FrameSize
	channels := m.format.Channels

	// A discontinuity in local ids abandons the partial frame.
	if m.pending > 0 && start != m.pendingStart+int64(m.pending) {
		m.pending = 0
	}

	for i := 0; i < count; {
		if m.pending == 0 {
			m.pendingStart = start + int64(i)
		}
		n := min(count-i, frame-m.pending)
		for ch := 0; ch < channels; ch++ {
			src := buffers[min(ch, len(buffers)-1)][i : i+n]
			for j, v := range src {
				m.scratch[(m.pending+j)*channels+ch] = v
			}
		}
		m.pending += n
		i += n

		if m.pending == frame {
			for _, l := range m.slots {
				if l != nil {
					l.Send(m.scratch, m.pendingStart)
				}
			}
			m.pending = 0
		}
	}
}

var _ Link = (*peer.Link)(nil)

// Package jitter implements the per-peer playback ring buffer addressed by sample id.
package jitter

import (
	"errors"
	"math"
)

// InvalidSampleID marks a buffer that is not anchored to any sample id.
const InvalidSampleID int64 = math.MinInt64

// ErrInvalidSize is returned by New for non-positive dimensions.
var ErrInvalidSize = errors.New("jitter: channels and capacity must be positive")

// Buffer is a fixed-capacity planar ring of samples. The sample at head has
// id base, and the held window is [base, base+count).
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	channels int
	capacity int
	storage  [][]float32

	head  int
	count int
	base  int64
}

// New allocates a buffer holding capacity samples per channel.
func New(channels, capacity int) (*Buffer, error) {
	if channels <= 0 || capacity <= 0 {
		return nil, ErrInvalidSize
	}

	storage := make([][]float32, channels)
	for ch := range storage {
		storage[ch] = make([]float32, capacity)
	}

	return &Buffer{
		channels: channels,
		capacity: capacity,
		storage:  storage,
		base:     InvalidSampleID,
	}, nil
}

// Write appends count interleaved frames whose first frame has id start.
//
// Frames already covered by the held window are dropped, a gap between the
// tail and start is filled with silence, and the oldest samples are evicted
// when the ring overflows. A gap of capacity or more re-anchors the buffer at
// start.
func (b *Buffer) Write(interleaved []float32, count int, start int64) {
	count = min(count, len(interleaved)/b.channels)
	if count <= 0 {
		return
	}

	if b.base == InvalidSampleID {
		b.anchor(start)
	}

	rel := start - b.base
	held := int64(b.count)
	switch {
	case rel < held:
		skip := held - rel
		if skip >= int64(count) {
			return
		}
		interleaved = interleaved[int(skip)*b.channels:]
		count -= int(skip)
	case rel > held:
		gap := rel - held
		if gap >= int64(b.capacity) {
			b.anchor(start)
		} else {
			b.fillSilence(int(gap))
		}
	}

	b.append(interleaved, count)
}

// Read adds gain-scaled samples for ids [start, start+count) into out.
// Ids outside the held window contribute nothing. Output channels beyond the
// buffer's channel count receive channel 0. It returns the number of frames
// that carried real samples.
func (b *Buffer) Read(out [][]float32, count int, start int64, gain float32) int {
	if b.base == InvalidSampleID || b.count == 0 || len(out) == 0 {
		return 0
	}
	for ch := range out {
		count = min(count, len(out[ch]))
	}
	if count <= 0 {
		return 0
	}

	lo := max(b.base-start, 0)
	hi := min(b.base+int64(b.count)-start, int64(count))
	if lo >= hi {
		return 0
	}

	idx := (b.head + int(start+lo-b.base)) % b.capacity
	for i := int(lo); i < int(hi); i++ {
		for ch := range out {
			src := ch
			if src >= b.channels {
				src = 0
			}
			out[ch][i] += gain * b.storage[src][idx]
		}
		idx++
		if idx == b.capacity {
			idx = 0
		}
	}

	return int(hi - lo)
}

// Reset drops all samples and the anchor.
func (b *Buffer) Reset() {
	b.head = 0
	b.count = 0
	b.base = InvalidSampleID
}

// Len is the number of held samples per channel.
func (b *Buffer) Len() int { return b.count }

// Base is the id of the oldest held sample, or InvalidSampleID.
func (b *Buffer) Base() int64 { return b.base }

// Tail is the id one past the newest held sample, or InvalidSampleID.
func (b *Buffer) Tail() int64 {
	if b.base == InvalidSampleID {
		return InvalidSampleID
	}
	return b.base + int64(b.count)
}

// Capacity is the ring size in samples per channel.
func (b *Buffer) Capacity() int { return b.capacity }

// Channels is the stored channel count.
func (b *Buffer) Channels() int { return b.channels }

func (b *Buffer) anchor(start int64) {
	b.head = 0
	b.count = 0
	b.base = start
}

// reserve evicts enough old samples to fit n more and returns the ring index
// of the first free slot. n must not exceed capacity.
func (b *Buffer) reserve(n int) int {
	if overflow := b.count + n - b.capacity; overflow > 0 {
		b.head = (b.head + overflow) % b.capacity
		b.count -= overflow
		b.base += int64(overflow)
	}
	return (b.head + b.count) % b.capacity
}

func (b *Buffer) fillSilence(n int) {
	idx := b.reserve(n)
	first := min(n, b.capacity-idx)
	for ch := range b.storage {
		clear(b.storage[ch][idx : idx+first])
		clear(b.storage[ch][:n-first])
	}
	b.count += n
}

func (b *Buffer) append(interleaved []float32, n int) {
	if n >= b.capacity {
		// Only the newest capacity samples survive.
		drop := n - b.capacity
		b.base += int64(b.count + drop)
		b.head = 0
		b.count = 0
		interleaved = interleaved[drop*b.channels:]
		n = b.capacity
	}

	idx := b.reserve(n)
	for i := 0; i < n; i++ {
		frame := interleaved[i*b.channels : (i+1)*b.channels]
		for ch, v := range frame {
			b.storage[ch][idx] = v
		}
		idx++
		if idx == b.capacity {
			idx = 0
		}
	}
	b.count += n
}

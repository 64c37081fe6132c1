package audio

// Interleave writes count frames of planar into dst as interleaved samples with
// the given channel count. Missing planar channels repeat the last one available.
func Interleave(dst []float32, planar [][]float32, count, channels int) []float32 {
	dst = grow(dst, count*channels)
	if len(planar) == 0 {
		clear(dst)
		return dst
	}
	for ch := 0; ch < channels; ch++ {
		src := planar[min(ch, len(planar)-1)]
		for i := 0; i < count; i++ {
			dst[i*channels+ch] = src[i]
		}
	}
	return dst
}

// Deinterleave splits interleaved samples into the planar slices of dst.
// It returns the number of frames written.
func Deinterleave(dst [][]float32, src []float32, channels int) int {
	if channels <= 0 || len(dst) == 0 {
		return 0
	}
	frames := len(src) / channels
	for ch := range dst {
		frames = min(frames, len(dst[ch]))
	}
	for ch := range dst {
		from := min(ch, channels-1)
		out := dst[ch]
		for i := 0; i < frames; i++ {
			out[i] = src[i*channels+from]
		}
	}
	return frames
}

// Scale multiplies every sample of planar by gain.
func Scale(planar [][]float32, count int, gain float32) {
	if gain == 1 {
		return
	}
	for _, ch := range planar {
		n := min(count, len(ch))
		if gain == 0 {
			clear(ch[:n])
			continue
		}
		for i := 0; i < n; i++ {
			ch[i] *= gain
		}
	}
}

// Clamp limits v to [-1, 1].
func Clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

// NewPlanar allocates a planar buffer of channels x frames.
func NewPlanar(channels, frames int) [][]float32 {
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	return out
}

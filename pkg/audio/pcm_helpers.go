package audio

import (
	"encoding/binary"
)

// FloatToInt16 converts a [-1, 1] sample to int16, clamping out of range values.
func FloatToInt16(v float32) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32767
	}
	return int16(v * 32767)
}

// Int16ToFloat converts an int16 sample to [-1, 1].
func Int16ToFloat(v int16) float32 {
	return float32(v) / 32767
}

// FloatToPCMInt16 converts float samples into dst, growing it if needed.
func FloatToPCMInt16(dst []int16, src []float32) []int16 {
	dst = grow(dst, len(src))
	for i, v := range src {
		dst[i] = FloatToInt16(v)
	}
	return dst
}

// PCMInt16ToFloat converts int16 samples into dst, growing it if needed.
func PCMInt16ToFloat(dst []float32, src []int16) []float32 {
	dst = grow(dst, len(src))
	for i, v := range src {
		dst[i] = Int16ToFloat(v)
	}
	return dst
}

// PCMInt16ToLE appends int16 samples to dst as little-endian bytes.
func PCMInt16ToLE(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// LEToPCMInt16 decodes little-endian bytes into int16 samples. A trailing odd byte is ignored.
func LEToPCMInt16(dst []int16, b []byte) []int16 {
	n := len(b) / 2
	dst = grow(dst, n)
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return dst
}

func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

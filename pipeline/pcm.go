// SPDX-License-Identifier: MPL-2.0

package pipeline

import "encoding/binary"

// RemapChannels duplicates or drops channels to go from in's channel
// count to out's, per spec.md §8 scenario 3 ("mono input, stereo wire
// encoding: each mono sample duplicated to both channels with no gain
// change"). Only the mono→N and N→mono cases are meaningful for audio;
// anything else is a straight per-channel truncate/repeat of channel 0.
func RemapChannels(samples []float32, inChannels, outChannels int) []float32 {
	if inChannels == outChannels {
		return samples
	}
	frames := len(samples) / inChannels
	out := make([]float32, frames*outChannels)
	for f := 0; f < frames; f++ {
		for c := 0; c < outChannels; c++ {
			src := c
			if src >= inChannels {
				src = 0
			}
			out[f*outChannels+c] = samples[f*inChannels+src]
		}
	}
	return out
}

// EncodeL16 converts interleaved float32 samples in [-1, 1] to RFC 3550
// big-endian 16-bit PCM (spec.md §6 "mono L16 and stereo L16
// (big-endian 16-bit PCM samples)").
func EncodeL16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * 32768
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		binary.BigEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// DecodeL16 is EncodeL16's inverse.
func DecodeL16(payload []byte) []float32 {
	n := len(payload) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.BigEndian.Uint16(payload[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

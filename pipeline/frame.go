// SPDX-License-Identifier: MPL-2.0

package pipeline

import "time"

// SampleSpec describes the rate and channel layout of a stream of audio
// samples, independent of any particular packet encoding (spec.md §6
// "rate is part of SampleSpec").
type SampleSpec struct {
	SampleRate uint32
	Channels   int
}

// SamplesPerFrame returns how many per-channel samples a frame of the
// given duration holds at this spec's rate.
func (s SampleSpec) SamplesPerFrame(d time.Duration) int {
	return int(int64(s.SampleRate) * int64(d) / int64(time.Second))
}

// FrameFlags mirrors spec.md §6's frame flags.
type FrameFlags uint8

const (
	// FrameHasSignal marks a frame as carrying real, non-synthetic audio.
	FrameHasSignal FrameFlags = 1 << iota
	// FrameHasGaps marks a frame that fills a hole left by packet loss
	// or an empty jitter buffer with synthesized (zero) samples.
	FrameHasGaps
	// FrameHasDrops marks a frame emitted after samples were discarded
	// upstream (e.g. a jitter buffer running ahead of target latency).
	FrameHasDrops
)

func (f FrameFlags) Has(bit FrameFlags) bool { return f&bit != 0 }

// Frame is the core's unit of audio exchange (spec.md §6): interleaved
// 32-bit float samples, their duration, an optional capture timestamp,
// and status flags. Samples are interleaved by SampleSpec.Channels, e.g.
// for stereo: [L0, R0, L1, R1, ...].
type Frame struct {
	Samples          []float32
	Duration         time.Duration
	CaptureTimestamp int64 // ns since epoch, 0 = unset
	Flags            FrameFlags
}

// SPDX-License-Identifier: MPL-2.0

package pipeline

import "errors"

// ErrRateMismatch is returned by passthroughResampler when asked to
// bridge two different rates without a real resampling algorithm
// plugged in.
var ErrRateMismatch = errors.New("pipeline: passthrough resampler cannot change sample rate")

// Resampler sits between frame writer and packetizer (send side) or
// between depacketizer and mixer input (receive side), exactly where
// spec.md §4.8 places it, and additionally carries the scaling knob
// audio/latency.Tuner drives (spec.md §4.4's "Scaling" paragraph).
// Real sample-rate conversion is an external collaborator (spec.md §1);
// the core only supplies the identity case and the hook point.
type Resampler interface {
	Resample(in Frame) (Frame, error)
	// SetScaling adjusts the resampler's output rate by coeff (values
	// near 1.0 speed up/slow down playback slightly to drain or fill a
	// jitter buffer without an audible pitch jump).
	SetScaling(coeff float64)
}

// passthroughResampler is the core's built-in identity Resampler, valid
// only when input_rate == payload_rate (spec.md §4.8). It has no notion
// of the input frame's own rate, so it cannot detect a mismatch itself;
// callers wiring mismatched rates without a real resampler get
// ErrRateMismatch from NewPassthroughResampler instead of a silent wrong
// answer. SetScaling is accepted but has no effect, since there is no
// resampling algorithm underneath to apply it to.
type passthroughResampler struct {
	spec SampleSpec
}

// NewPassthroughResampler constructs the identity Resampler for streams
// whose input and payload rates already match. It returns
// ErrRateMismatch if they don't.
func NewPassthroughResampler(inSpec, wireSpec SampleSpec) (Resampler, error) {
	if inSpec.SampleRate != wireSpec.SampleRate {
		return nil, ErrRateMismatch
	}
	return &passthroughResampler{spec: wireSpec}, nil
}

func (r *passthroughResampler) Resample(in Frame) (Frame, error) {
	return in, nil
}

func (r *passthroughResampler) SetScaling(coeff float64) {}

// SPDX-License-Identifier: MPL-2.0

package latency

import "time"

// PIEstimator is the built-in ScalingEstimator: a simple
// proportional-integral controller on the normalized latency error,
// standing in for spec.md §4.4's "external, PI-like" frequency
// estimator. No example repo in the retrieval pack carries a clock-drift
// estimator, so this is a from-scratch, stdlib-only implementation (see
// DESIGN.md); the controller shape (P + I on a bounded error term) is a
// standard pattern, not specific to any domain library.
type PIEstimator struct {
	kp, ki   float64
	integral float64
}

// NewPIEstimator constructs a PIEstimator. Zero gains select the
// defaults (0.001 proportional, 0.0005 integral), chosen to keep the
// coefficient within a typical ±0.5% scaling_tolerance for the latency
// errors this controller is driven with.
func NewPIEstimator(kp, ki float64) *PIEstimator {
	if kp == 0 {
		kp = 0.001
	}
	if ki == 0 {
		ki = 0.0005
	}
	return &PIEstimator{kp: kp, ki: ki}
}

// Update computes a playback rate coefficient around 1.0 from the
// relative error between actual and target latency: a receiver running
// behind (actual > target) should play back slightly faster to drain the
// queue, and vice versa.
func (e *PIEstimator) Update(actual, target time.Duration) float64 {
	if target <= 0 {
		return 1
	}
	errRatio := float64(actual-target) / float64(target)
	e.integral += errRatio
	const integralClamp = 50
	if e.integral > integralClamp {
		e.integral = integralClamp
	} else if e.integral < -integralClamp {
		e.integral = -integralClamp
	}
	return 1 + e.kp*errRatio + e.ki*e.integral
}

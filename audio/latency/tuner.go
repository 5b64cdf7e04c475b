// SPDX-License-Identifier: MPL-2.0

// Package latency implements the target-latency/scaling tuner from
// spec.md §4.4, grounded on `roc_audio::LatencyTuner` (latency_config.h)
// and the teacher's style of a small, config-driven stateful component.
package latency

import (
	"time"

	"github.com/rocwire/rocwire/audio/jitter"
	"github.com/rocwire/rocwire/config"
	"github.com/rs/zerolog"
)

// Now is overridable in tests; production code leaves it as time.Now.
var Now = time.Now

// Mode is Fixed or Adaptive per spec.md §4.4's two modes.
type Mode int

const (
	ModeFixed Mode = iota
	ModeAdaptive
)

// Metrics are the latency-related values the tuner reasons about
// (spec.md §9's LatencyMetrics, "niq_latency, niq_stalling, e2e_latency,
// fec_block_duration").
type Metrics struct {
	NiqLatency       time.Duration
	NiqStalling      time.Duration
	E2ELatency       time.Duration
	FECBlockDuration time.Duration
}

// ScalingEstimator is the pluggable "external, PI-like" frequency
// estimator from spec.md §4.4's Scaling paragraph. Update is called once
// per scaling_interval with the current buffered latency and target, and
// returns a recommended resampler rate coefficient around 1.0.
type ScalingEstimator interface {
	Update(actual, target time.Duration) float64
}

// Tuner combines jitter metrics and queue depth into a resampler scaling
// factor and an optional target-latency adjustment (spec.md §4.4).
type Tuner struct {
	cfg       config.LatencyConfig
	mode      Mode
	estimator ScalingEstimator
	log       zerolog.Logger

	target time.Duration

	startedAt    time.Time
	lastDecAt    time.Time
	lastIncAt    time.Time
	lastScaleAt  time.Time
	haveLastScale bool
	scalingCoeff float64
}

// NewTuner constructs a Tuner. cfg must already have DeduceDefaults
// applied. If estimator is nil, a PIEstimator with default gains is used.
func NewTuner(cfg config.LatencyConfig, estimator ScalingEstimator, log zerolog.Logger) *Tuner {
	mode := ModeAdaptive
	target := cfg.StartTargetLatency
	if cfg.TargetLatency > 0 {
		mode = ModeFixed
		target = cfg.TargetLatency
	}
	if estimator == nil {
		estimator = NewPIEstimator(0, 0)
	}
	return &Tuner{
		cfg:          cfg,
		mode:         mode,
		estimator:    estimator,
		log:          log.With().Str("component", "audio.latency").Logger(),
		target:       target,
		startedAt:    Now(),
		scalingCoeff: 1,
	}
}

// Mode reports whether the tuner is running fixed or adaptive.
func (t *Tuner) Mode() Mode { return t.mode }

// Target returns the tuner's current target latency.
func (t *Tuner) Target() time.Duration { return t.target }

// estimate computes the adaptive-mode optimal latency estimate from
// current jitter metrics (spec.md §4.4's
// "max(max_jitter × max_overhead, mean_jitter × mean_overhead)").
func (t *Tuner) estimate(m jitter.Metrics) time.Duration {
	byPeak := float64(m.PeakJitter) * float64(t.cfg.MaxJitterOverhead)
	byMean := float64(m.MeanJitter) * float64(t.cfg.MeanJitterOverhead)
	est := byPeak
	if byMean > est {
		est = byMean
	}
	d := time.Duration(est)
	if d < t.cfg.MinTargetLatency {
		d = t.cfg.MinTargetLatency
	}
	if d > t.cfg.MaxTargetLatency {
		d = t.cfg.MaxTargetLatency
	}
	return d
}

// Update folds the latest jitter metrics and queue state into the
// tuner's target latency. It returns whether the current latency is out
// of tolerance (spec.md §4.4). The stalling exception and the three
// cooldowns are honored per spec.md §4.4.
func (t *Tuner) Update(m jitter.Metrics, lm Metrics) (outOfTolerance bool) {
	if t.cfg.TunerProfile == config.ProfileIntact {
		return t.outOfTolerance(t.target, lm)
	}

	stalling := lm.NiqStalling > t.cfg.StaleTolerance
	if stalling {
		return false
	}

	if t.mode == ModeFixed {
		return t.outOfTolerance(t.target, lm)
	}

	now := Now()
	est := t.estimate(m)

	if now.Sub(t.startedAt) < t.cfg.StartingTimeout {
		return t.outOfTolerance(t.target, lm)
	}

	switch {
	case float64(lm.NiqLatency) >= float64(t.cfg.LatencyDecreaseRelativeThreshold)*float64(est) &&
		now.Sub(t.lastDecAt) >= t.cfg.CooldownDecTimeout:
		t.target = est
		t.lastDecAt = now
	case est > t.target && now.Sub(t.lastIncAt) >= t.cfg.CooldownIncTimeout:
		t.target = est
		t.lastIncAt = now
	}

	return t.outOfTolerance(t.target, lm)
}

func (t *Tuner) outOfTolerance(target time.Duration, lm Metrics) bool {
	diff := lm.NiqLatency - target
	if diff < 0 {
		diff = -diff
	}
	return diff > t.cfg.LatencyTolerance
}

// Scaling runs the scaling estimator at most once per ScalingInterval and
// returns the clipped resampler coefficient (spec.md §4.4's Scaling
// paragraph). updated reports whether a new estimate was computed this
// call; otherwise the previous coefficient is returned unchanged.
func (t *Tuner) Scaling(lm Metrics) (coeff float64, updated bool) {
	now := Now()
	if t.haveLastScale && now.Sub(t.lastScaleAt) < t.cfg.ScalingInterval {
		return t.scalingCoeff, false
	}
	t.lastScaleAt = now
	t.haveLastScale = true

	raw := t.estimator.Update(lm.NiqLatency, t.target)
	lo := 1 - float64(t.cfg.ScalingTolerance)
	hi := 1 + float64(t.cfg.ScalingTolerance)
	if raw < lo {
		raw = lo
	}
	if raw > hi {
		raw = hi
	}
	t.scalingCoeff = raw
	return raw, true
}

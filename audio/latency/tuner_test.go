// SPDX-License-Identifier: MPL-2.0

package latency

import (
	"testing"
	"time"

	"github.com/rocwire/rocwire/audio/jitter"
	"github.com/rocwire/rocwire/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func withFakeClock(t *testing.T, start time.Time) func() {
	t.Helper()
	real := Now
	now := start
	Now = func() time.Time { return now }
	return func() { Now = real }
}

func advance(t *testing.T, d time.Duration) {
	t.Helper()
	cur := Now()
	Now = func() time.Time { return cur.Add(d) }
}

func TestTunerFixedModeTracksTolerance(t *testing.T) {
	restore := withFakeClock(t, time.Unix(0, 0))
	defer restore()

	cfg := config.LatencyConfig{TargetLatency: 100 * time.Millisecond}
	require.NoError(t, cfg.DeduceDefaults())

	tuner := NewTuner(cfg, nil, zerolog.Nop())
	require.Equal(t, ModeFixed, tuner.Mode())
	require.Equal(t, 100*time.Millisecond, tuner.Target())

	ok := tuner.Update(jitter.Metrics{}, Metrics{NiqLatency: 105 * time.Millisecond})
	require.False(t, ok, "within tolerance")

	ok = tuner.Update(jitter.Metrics{}, Metrics{NiqLatency: 500 * time.Millisecond})
	require.True(t, ok, "far outside tolerance")

	require.Equal(t, 100*time.Millisecond, tuner.Target(), "fixed mode never changes target")
}

func TestTunerAdaptiveModeGrowsFromStartingEstimate(t *testing.T) {
	restore := withFakeClock(t, time.Unix(0, 0))
	defer restore()

	cfg := config.LatencyConfig{
		StartTargetLatency: 50 * time.Millisecond,
		StartingTimeout:    time.Millisecond,
		CooldownIncTimeout: time.Millisecond,
		CooldownDecTimeout: time.Millisecond,
	}
	require.NoError(t, cfg.DeduceDefaults())
	tuner := NewTuner(cfg, nil, zerolog.Nop())
	require.Equal(t, ModeAdaptive, tuner.Mode())

	advance(t, time.Second)
	tuner.Update(jitter.Metrics{MeanJitter: 200 * time.Millisecond, PeakJitter: 300 * time.Millisecond},
		Metrics{NiqLatency: 50 * time.Millisecond})

	require.Greater(t, tuner.Target(), 50*time.Millisecond, "estimate should raise target above the start value")
	require.LessOrEqual(t, tuner.Target(), cfg.MaxTargetLatency)
}

func TestTunerStallingSuspendsToleranceChecks(t *testing.T) {
	restore := withFakeClock(t, time.Unix(0, 0))
	defer restore()

	cfg := config.LatencyConfig{TargetLatency: 100 * time.Millisecond, StaleTolerance: time.Second}
	require.NoError(t, cfg.DeduceDefaults())
	tuner := NewTuner(cfg, nil, zerolog.Nop())

	ok := tuner.Update(jitter.Metrics{}, Metrics{NiqLatency: 900 * time.Millisecond, NiqStalling: 2 * time.Second})
	require.False(t, ok, "stalling exception suspends tolerance checks")
}

func TestTunerIntactProfileNeverAdjusts(t *testing.T) {
	restore := withFakeClock(t, time.Unix(0, 0))
	defer restore()

	cfg := config.LatencyConfig{TunerProfile: config.ProfileIntact, StartTargetLatency: 50 * time.Millisecond}
	require.NoError(t, cfg.DeduceDefaults())
	tuner := NewTuner(cfg, nil, zerolog.Nop())

	before := tuner.Target()
	tuner.Update(jitter.Metrics{MeanJitter: time.Second, PeakJitter: time.Second}, Metrics{NiqLatency: time.Second})
	require.Equal(t, before, tuner.Target())
}

func TestTunerScalingClippedToTolerance(t *testing.T) {
	restore := withFakeClock(t, time.Unix(0, 0))
	defer restore()

	cfg := config.LatencyConfig{TargetLatency: 100 * time.Millisecond, ScalingTolerance: 0.01}
	require.NoError(t, cfg.DeduceDefaults())
	tuner := NewTuner(cfg, nil, zerolog.Nop())

	coeff, updated := tuner.Scaling(Metrics{NiqLatency: 10 * time.Second})
	require.True(t, updated)
	require.LessOrEqual(t, coeff, 1.01)
	require.GreaterOrEqual(t, coeff, 0.99)

	_, updated = tuner.Scaling(Metrics{NiqLatency: 10 * time.Second})
	require.False(t, updated, "second call within the same interval should not recompute")
}

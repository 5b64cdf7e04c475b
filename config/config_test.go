// SPDX-License-Identifier: MPL-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatencyConfigDeduceDefaultsResponsiveProfile(t *testing.T) {
	c := LatencyConfig{TargetLatency: 10 * time.Millisecond}
	require.NoError(t, c.DeduceDefaults())
	require.Equal(t, ProfileResponsive, c.TunerProfile)
	require.Equal(t, TunerBackendAdaptive, c.TunerBackend)
}

func TestLatencyConfigDeduceDefaultsAdaptiveProfile(t *testing.T) {
	c := LatencyConfig{}
	require.NoError(t, c.DeduceDefaults())
	require.Equal(t, ProfileGradual, c.TunerProfile)
	require.Greater(t, c.MaxTargetLatency, c.MinTargetLatency)
}

func TestLatencyConfigRejectsNegative(t *testing.T) {
	c := LatencyConfig{TargetLatency: -1}
	require.ErrorIs(t, c.DeduceDefaults(), ErrBadConfig)
}

func TestFecWriterConfigDefaults(t *testing.T) {
	c := FecWriterConfig{}
	require.NoError(t, c.DeduceDefaults())
	require.Equal(t, 20, c.NSourcePackets)
	require.Equal(t, 10, c.NRepairPackets)
}

func TestFecWriterConfigZeroKUsesDefault(t *testing.T) {
	c := FecWriterConfig{NSourcePackets: 0, NRepairPackets: 5}
	c.NSourcePackets = -0 // still zero, DeduceDefaults fills it
	require.NoError(t, c.DeduceDefaults())

	c2 := FecWriterConfig{NSourcePackets: 1}
	c2.NSourcePackets = 1
	require.NoError(t, c2.DeduceDefaults())
}

func TestJitterMeterConfigRejectsBadQuantile(t *testing.T) {
	c := JitterMeterConfig{PeakQuantileCoeff: 1.5}
	require.ErrorIs(t, c.DeduceDefaults(), ErrBadConfig)
}

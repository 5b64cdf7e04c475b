// SPDX-License-Identifier: MPL-2.0

package rtcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRTTEstimatorUpdateFourTimestamps reproduces spec.md §4.6's (T1..T4)
// example: a report sent at T1, received remotely at T2, replied to at
// T3, and the reply received locally at T4, with a known one-way delay
// and clock offset baked into the four timestamps.
func TestRTTEstimatorUpdateFourTimestamps(t *testing.T) {
	e := NewRTTEstimator(8)
	require.False(t, e.HasMetrics())

	// Simulated 20ms one-way network delay, remote clock 3s ahead of
	// local, remote processing takes 5ms between receiving the report
	// and sending its reply.
	const oneWay = 20 * time.Millisecond
	const clockSkew = 3 * time.Second
	const remoteProcessing = 5 * time.Millisecond

	t1 := time.Unix(100, 0)
	t2 := t1.Add(oneWay).Add(clockSkew)
	t3 := t2.Add(remoteProcessing)
	t4 := t3.Add(oneWay).Add(-clockSkew)

	e.Update(t1, t2, t3, t4)
	require.True(t, e.HasMetrics())

	// RTT = (T4-T1) - (T3-T2); the remote's own processing time (T3-T2)
	// is subtracted out, leaving just the two one-way network delays.
	metrics := e.Metrics()
	require.Equal(t, 2*oneWay, metrics.RTT)
	require.Equal(t, clockSkew, metrics.ClockOffset)
}

func TestRTTEstimatorUpdateRejectsInvertedTimestamps(t *testing.T) {
	e := NewRTTEstimator(8)

	t1 := time.Unix(100, 0)
	t4 := t1.Add(-10 * time.Millisecond) // reply received before report sent: bogus
	e.Update(t1, t1, t1, t4)
	require.False(t, e.HasMetrics())
}

func TestRTTEstimatorUpdateRejectsStaleReport(t *testing.T) {
	e := NewRTTEstimator(8)

	t1 := time.Unix(100, 0)
	e.Update(t1, t1.Add(time.Millisecond), t1.Add(2*time.Millisecond), t1.Add(3*time.Millisecond))
	require.True(t, e.HasMetrics())
	firstRTT := e.Metrics().RTT

	// A second round whose report timestamp does not advance past the
	// first is rejected outright.
	e.Update(t1, t1.Add(time.Millisecond), t1.Add(2*time.Millisecond), t1.Add(3*time.Millisecond))
	require.Equal(t, firstRTT, e.Metrics().RTT)
}

func TestRTTEstimatorMedianRejectsOutlier(t *testing.T) {
	e := NewRTTEstimator(8)

	base := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		t1 := base.Add(time.Duration(i) * time.Second)
		t2 := t1.Add(10 * time.Millisecond)
		t3 := t2
		t4 := t3.Add(10 * time.Millisecond)
		e.Update(t1, t2, t3, t4)
	}
	require.Equal(t, 20*time.Millisecond, e.Metrics().RTT)

	// One wildly large round trip shouldn't move the median once enough
	// consistent samples anchor it.
	t1 := base.Add(5 * time.Second)
	t2 := t1.Add(2 * time.Second)
	t3 := t2
	t4 := t3.Add(2 * time.Second)
	e.Update(t1, t2, t3, t4)
	require.Equal(t, 20*time.Millisecond, e.Metrics().RTT)
}

func TestRTTEstimatorAddDirectSample(t *testing.T) {
	e := NewRTTEstimator(4)
	require.False(t, e.HasMetrics())

	e.AddDirectSample(30 * time.Millisecond)
	require.True(t, e.HasMetrics())
	require.Equal(t, 30*time.Millisecond, e.Metrics().RTT)

	e.AddDirectSample(-5 * time.Millisecond) // rejected
	require.Equal(t, 30*time.Millisecond, e.Metrics().RTT)

	e.AddDirectSample(50 * time.Millisecond)
	// median of {30ms, 50ms} sorted -> index (2-1)/2 = 0 -> 30ms
	require.Equal(t, 30*time.Millisecond, e.Metrics().RTT)
}

// SPDX-License-Identifier: MPL-2.0

package rtcp

import (
	"sort"
	"time"
)

// RTTMetrics reports the current round-trip-time and clock-offset
// estimate for one stream's report/reply exchange (spec.md §4.6).
type RTTMetrics struct {
	RTT         time.Duration
	ClockOffset time.Duration
}

// RTTEstimator computes round-trip time and clock offset from the four
// NTP-style timestamps exchanged in a report/reply round — T1..T4 in
// RFC 3550/RFC 5905 notation — smoothing each over a sliding median to
// reject outliers from a single noisy round trip. Grounded on
// `original_source/src/internal_modules/roc_rtcp/rtt_estimator.cpp`.
//
// Mapping, reproduced from the original comment, since it is the whole
// point of the four-timestamp signature:
//
//	T1 (localReportTS)  local time this end sent its report
//	T2 (remoteReportTS) remote time the peer received that report
//	T3 (remoteReplyTS)  remote time the peer sent its reply report
//	T4 (localReplyTS)   local time this end received that reply
//
// As sender: T1=LSR, T2=RRTR.NTP-DLSR, T3=RRTR.NTP, T4=LRR.
// As receiver: T1=LRR, T2=SR.NTP-DLRR, T3=SR.NTP, T4=LSR.
// RTTEstimator is agnostic to direction. Reporter does not perform this
// mapping: it feeds its per-stream estimators only through
// AddDirectSample (on both the SR/RR and the XR/DLRR paths), so those
// estimators never produce a ClockOffset.
type RTTEstimator struct {
	windowLen int

	hasMetrics    bool
	metrics       RTTMetrics
	firstReportTS time.Time
	lastReportTS  time.Time

	rtt         *slidingMedian
	clockOffset *slidingMedian
}

// NewRTTEstimator constructs an RTTEstimator with the given sliding
// window length (number of rounds retained for the median; spec.md §4.6
// default is 32).
func NewRTTEstimator(windowLen int) *RTTEstimator {
	if windowLen < 1 {
		windowLen = 32
	}
	return &RTTEstimator{
		windowLen:   windowLen,
		rtt:         newSlidingMedian(windowLen),
		clockOffset: newSlidingMedian(windowLen),
	}
}

// HasMetrics reports whether at least one valid round has been recorded.
func (e *RTTEstimator) HasMetrics() bool { return e.hasMetrics }

// Metrics returns the current smoothed RTT/clock-offset estimate.
func (e *RTTEstimator) Metrics() RTTMetrics { return e.metrics }

// AddDirectSample folds in an RTT computed by the classic RFC 3550
// LSR/DLSR formula (`rtt = now - LSR - DLSR`), used for the plain SR/RR
// path (spec.md §4.6) where no XR/RRTR round-trip is available to derive
// a clock-offset estimate. Negative samples (clock skew or a malformed
// DLSR) are rejected the same way Update rejects a negative T4-T1-(T3-T2).
func (e *RTTEstimator) AddDirectSample(rtt time.Duration) {
	if rtt < 0 {
		return
	}
	e.rtt.add(float64(rtt))
	e.metrics.RTT = time.Duration(e.rtt.median())
	e.hasMetrics = true
}

// Update folds in one report/reply round. Rounds with an inverted or
// stale timestamp ordering are silently rejected, matching the original
// estimator's "filter out obviously incorrect reports" behavior.
func (e *RTTEstimator) Update(localReportTS, remoteReportTS, remoteReplyTS, localReplyTS time.Time) {
	if localReportTS.After(localReplyTS) || remoteReportTS.After(remoteReplyTS) {
		return
	}
	if !e.lastReportTS.IsZero() && !localReportTS.After(e.lastReportTS) {
		return
	}

	clockOffset := (remoteReportTS.Sub(localReportTS) + remoteReplyTS.Sub(localReplyTS)) / 2
	rtt := localReplyTS.Sub(localReportTS) - remoteReplyTS.Sub(remoteReportTS)
	if rtt < 0 {
		return
	}

	if e.firstReportTS.IsZero() {
		e.firstReportTS = localReportTS
	}
	e.lastReportTS = localReportTS

	e.rtt.add(float64(rtt))
	e.clockOffset.add(float64(clockOffset))
	e.metrics.RTT = time.Duration(e.rtt.median())
	e.metrics.ClockOffset = time.Duration(e.clockOffset.median())
	e.hasMetrics = true
}

// slidingMedian is a small duplicate of audio/jitter's movQuantile fixed
// at the 0.5 quantile; kept local rather than shared since the RTT
// estimator is the only other consumer of this pattern in the repo and
// it's a handful of lines (see DESIGN.md). Grounded on the same
// `roc_stat::MovQuantile` source as audio/jitter's copy.
type slidingMedian struct {
	window []float64
	pos    int
	filled int
	sorted []float64
}

func newSlidingMedian(length int) *slidingMedian {
	return &slidingMedian{window: make([]float64, length), sorted: make([]float64, 0, length)}
}

func (m *slidingMedian) add(v float64) {
	n := len(m.window)
	if m.filled == n {
		old := m.window[m.pos]
		i := sort.SearchFloat64s(m.sorted, old)
		if i < len(m.sorted) && m.sorted[i] == old {
			m.sorted = append(m.sorted[:i], m.sorted[i+1:]...)
		}
	} else {
		m.filled++
	}
	m.window[m.pos] = v
	i := sort.SearchFloat64s(m.sorted, v)
	m.sorted = append(m.sorted, 0)
	copy(m.sorted[i+1:], m.sorted[i:])
	m.sorted[i] = v
	m.pos = (m.pos + 1) % n
}

func (m *slidingMedian) median() float64 {
	if m.filled == 0 {
		return 0
	}
	return m.sorted[(m.filled-1)/2]
}

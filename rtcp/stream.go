// SPDX-License-Identifier: MPL-2.0

package rtcp

import "time"

// SenderMetrics is the sender-side notification Reporter delivers when it
// processes an inbound RR (or XR/DLRR) that reports on a stream we are
// sending (spec.md §4.6). JitterRTPUnits is left in RTP timestamp units
// (RFC 3550 §6.4.1) rather than converted to a duration, since Reporter
// has no per-stream clock rate to convert with; the caller (which knows
// its own SampleSpec) does the conversion.
type SenderMetrics struct {
	SSRC           uint32
	FractionLost   uint8
	CumulativeLost int32
	JitterRTPUnits uint32
	RTT            time.Duration
	ClockOffset    time.Duration

	// Populated only when the reporting XR packet carried the
	// corresponding domain-specific block (spec.md §4.5/§4.6).
	HasLatencyMetrics bool
	NiqLatency        time.Duration
	NiqStalling       time.Duration
	E2ELatency        time.Duration
	HasQueueMetrics   bool
	TargetLatency     time.Duration
	FECBlockDuration  time.Duration
}

// ReceiverMetrics is the receiver-side notification delivered when
// Reporter processes an inbound SR for a stream we are receiving.
type ReceiverMetrics struct {
	SSRC        uint32
	NTPTime     time.Time
	RTPTime     uint32
	PacketCount uint32
	OctetCount  uint32
}

// stream is the per-remote-SSRC state Reporter accumulates. The table is
// keyed by the remote SSRC alone, not by a (local, remote) SSRC pair;
// each Reporter has a single local SSRC. Grounded on roc_rtcp's
// per-stream sender/receiver report state (session.h is not in the
// filtered retrieval pack; the field set below is derived directly from
// what spec.md §4.6 says the reporter records and echoes).
type stream struct {
	ssrc   uint32
	cname  string
	halted bool

	lastActivity time.Time

	// set once we've processed an SR naming this SSRC as sender.
	hasSenderInfo  bool
	lastSRNTPMid   uint32 // middle 32 bits of the SR's NTP timestamp ("LSR")
	lastSRRecvTime time.Time

	// set once we've processed an XR/RRTR naming this SSRC as sender,
	// the reverse-direction analogue of lastSRNTPMid ("LRR").
	hasRRTRInfo    bool
	lastRRTRNTPMid uint32
	lastRRTRTime   time.Time

	rtt *RTTEstimator
}

func newStream(ssrc uint32, rttWindow int) *stream {
	return &stream{ssrc: ssrc, rtt: NewRTTEstimator(rttWindow)}
}

// streamTable is a per-SSRC map of stream state plus inactivity eviction,
// shared by send-direction and receive-direction bookkeeping alike —
// spec.md §4.6 doesn't distinguish the table by direction, only by SSRC.
type streamTable struct {
	streams   map[uint32]*stream
	rttWindow int
}

func newStreamTable(rttWindow int) *streamTable {
	return &streamTable{streams: make(map[uint32]*stream), rttWindow: rttWindow}
}

func (t *streamTable) getOrCreate(ssrc uint32) *stream {
	s, ok := t.streams[ssrc]
	if !ok {
		s = newStream(ssrc, t.rttWindow)
		t.streams[ssrc] = s
	}
	return s
}

func (t *streamTable) get(ssrc uint32) (*stream, bool) {
	s, ok := t.streams[ssrc]
	return s, ok
}

func (t *streamTable) remove(ssrc uint32) {
	delete(t.streams, ssrc)
}

// evictInactive removes every stream not heard from within timeout and
// returns their SSRCs, for the caller to emit halt notifications for
// (spec.md §4.6 "inactivity timeout... evicted with a halt notification").
func (t *streamTable) evictInactive(now time.Time, timeout time.Duration) []uint32 {
	var evicted []uint32
	for ssrc, s := range t.streams {
		if now.Sub(s.lastActivity) > timeout {
			evicted = append(evicted, ssrc)
			delete(t.streams, ssrc)
		}
	}
	return evicted
}

// SPDX-License-Identifier: MPL-2.0

package rtcp

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/rocwire/rocwire/config"
	"github.com/rocwire/rocwire/rtcp/wire"
	"github.com/rs/zerolog"
)

// Notifier receives the remote-derived updates Reporter extracts from
// inbound compound packets, and arbitrates local-SSRC collisions — the
// Go counterpart of roc_rtcp::IParticipant's notification half (spec.md
// §4.6/§4.7; IParticipant's own header was not present in the filtered
// original_source pack, so this interface is shaped directly from
// spec.md's prose rather than translated from C++).
type Notifier interface {
	NotifySenderMetrics(SenderMetrics)
	NotifyReceiverMetrics(ReceiverMetrics)
	NotifyHalted(ssrc uint32)

	// ResolveSSRCCollision is called when a remote peer advertises our
	// own SSRC under a different CNAME (spec.md §4.6 "collision
	// handling"). It must return a fresh SSRC for us to switch to.
	ResolveSSRCCollision(oldSSRC uint32) (newSSRC uint32)
}

// Reporter maintains the per-stream table keyed by SSRC and turns inbound
// RTCP sub-packets into Notifier callbacks (spec.md §4.6). It does not
// itself send or receive bytes; Communicator drives it with already
// Traverser-decoded packets and periodically asks it to build outgoing
// report contents.
type Reporter struct {
	cfg        config.RtcpConfig
	localSSRC  uint32
	localCNAME string

	streams  *streamTable
	notifier Notifier
	log      zerolog.Logger

	pendingBye   []uint32
	lastSentSR   bool
	lastSentMid  uint32
}

// NewReporter constructs a Reporter for the local SSRC/CNAME pair.
func NewReporter(cfg config.RtcpConfig, localSSRC uint32, localCNAME string, notifier Notifier, log zerolog.Logger) *Reporter {
	return &Reporter{
		cfg:        cfg,
		localSSRC:  localSSRC,
		localCNAME: localCNAME,
		streams:    newStreamTable(cfg.RTTConfig.QuantileWindow),
		notifier:   notifier,
		log:        log.With().Str("component", "rtcp.reporter").Logger(),
	}
}

// LocalSSRC returns the SSRC Reporter currently considers ours. It can
// change as a result of ProcessPacket resolving a collision.
func (r *Reporter) LocalSSRC() uint32 { return r.localSSRC }

// LocalCNAME returns our CNAME, embedded in every generated SDES chunk.
func (r *Reporter) LocalCNAME() string { return r.localCNAME }

// TakePendingByes drains and returns any SSRCs Communicator must send a
// BYE for as a result of a resolved collision (spec.md §4.6 "sends a BYE
// for the old SSRC and transitions to the new").
func (r *Reporter) TakePendingByes() []uint32 {
	pending := r.pendingBye
	r.pendingBye = nil
	return pending
}

// NoteSentSR records the middle 32 bits of the NTP timestamp of the SR
// we just sent. The RTT computation in processReceptionReport works from
// the LSR echoed in each report block and does not read this value.
func (r *Reporter) NoteSentSR(ntp uint64) {
	r.lastSentSR = true
	r.lastSentMid = ntpMid(ntp)
}

// ProcessPacket folds every sub-packet of an already-decoded compound
// RTCP packet into the stream table, invoking Notifier as needed.
func (r *Reporter) ProcessPacket(packets []rtcp.Packet, now time.Time) {
	for _, p := range packets {
		switch v := p.(type) {
		case *rtcp.SenderReport:
			r.processSR(v, now)
		case *rtcp.ReceiverReport:
			r.processRR(v, now)
		case *wire.XRPacket:
			r.processXR(v, now)
		case *rtcp.SourceDescription:
			r.processSDES(v, now)
		case *rtcp.Goodbye:
			r.processBYE(v, now)
		}
	}
}

func (r *Reporter) processSR(sr *rtcp.SenderReport, now time.Time) {
	s := r.streams.getOrCreate(sr.SSRC)
	s.lastActivity = now
	s.hasSenderInfo = true
	s.lastSRNTPMid = ntpMid(sr.NTPTime)
	s.lastSRRecvTime = now

	r.notifier.NotifyReceiverMetrics(ReceiverMetrics{
		SSRC:        sr.SSRC,
		NTPTime:     ntpToTime(sr.NTPTime),
		RTPTime:     sr.RTPTime,
		PacketCount: sr.PacketCount,
		OctetCount:  sr.OctetCount,
	})

	for _, blk := range sr.Reports {
		r.processReceptionReport(sr.SSRC, blk, now)
	}
}

func (r *Reporter) processRR(rr *rtcp.ReceiverReport, now time.Time) {
	s := r.streams.getOrCreate(rr.SSRC)
	s.lastActivity = now
	for _, blk := range rr.Reports {
		r.processReceptionReport(rr.SSRC, blk, now)
	}
}

// processReceptionReport handles one reception-report block, from either
// an SR or an RR, whose SSRC field names the stream it reports on.
// reporterSSRC is the sender of the enclosing SR/RR (spec.md §4.6 "on
// inbound RR... compute RTT from (current_time − last_sr_ntp_we_sent −
// delay_last_sr_reported)" — the classic RFC 3550 LSR/DLSR formula, which
// needs no locally-stored T1 since LSR is the remote's verbatim echo of
// it).
func (r *Reporter) processReceptionReport(reporterSSRC uint32, blk rtcp.ReceptionReport, now time.Time) {
	if blk.SSRC != r.localSSRC {
		return
	}
	s := r.streams.getOrCreate(reporterSSRC)
	s.lastActivity = now

	m := SenderMetrics{
		SSRC:           reporterSSRC,
		FractionLost:   blk.FractionLost,
		CumulativeLost: int32(blk.TotalLost),
		JitterRTPUnits: blk.Jitter,
	}
	if blk.LastSenderReport != 0 {
		nowMid := ntpMid(ntpTimestamp(now))
		rttShort := nowMid - blk.LastSenderReport - blk.Delay
		rtt := ntpShortDuration(rttShort)
		if isPlausibleRTT(rtt) {
			s.rtt.AddDirectSample(rtt)
			m.RTT = s.rtt.Metrics().RTT
		}
	}
	r.notifier.NotifySenderMetrics(m)
}

func (r *Reporter) processXR(xr *wire.XRPacket, now time.Time) {
	s := r.streams.getOrCreate(xr.SenderSSRC)
	s.lastActivity = now

	var metrics SenderMetrics
	hasMetrics := false

	for _, blk := range xr.Blocks {
		switch b := blk.(type) {
		case wire.RRTRBlock:
			s.hasRRTRInfo = true
			s.lastRRTRNTPMid = compactFromParts(b.NTPSeconds, b.NTPFraction)
			s.lastRRTRTime = now

		case wire.DLRRBlock:
			for _, rep := range b.Reports {
				if rep.SSRC != r.localSSRC {
					continue
				}
				target := r.streams.getOrCreate(xr.SenderSSRC)
				nowMid := ntpMid(ntpTimestamp(now))
				rttShort := nowMid - rep.LastRR - rep.DelaySinceLastRR
				rtt := ntpShortDuration(rttShort)
				if isPlausibleRTT(rtt) {
					target.rtt.AddDirectSample(rtt)
					metrics.RTT = target.rtt.Metrics().RTT
					metrics.SSRC = xr.SenderSSRC
					hasMetrics = true
				}
			}

		case wire.DelayMetricsBlock:
			if b.SSRC != r.localSSRC {
				continue
			}
			metrics.SSRC = xr.SenderSSRC
			metrics.HasLatencyMetrics = true
			metrics.NiqLatency = time.Duration(b.NiqLatencyNS)
			metrics.NiqStalling = time.Duration(b.NiqStallingNS)
			metrics.E2ELatency = time.Duration(b.E2ELatencyNS)
			hasMetrics = true

		case wire.QueueMetricsBlock:
			if b.SSRC != r.localSSRC {
				continue
			}
			metrics.SSRC = xr.SenderSSRC
			metrics.HasQueueMetrics = true
			metrics.TargetLatency = time.Duration(b.TargetLatencyNS)
			metrics.FECBlockDuration = time.Duration(b.FECBlockDurationNS)
			hasMetrics = true
		}
	}

	if hasMetrics {
		r.notifier.NotifySenderMetrics(metrics)
	}
}

func (r *Reporter) processSDES(sdes *rtcp.SourceDescription, now time.Time) {
	for _, chunk := range sdes.Chunks {
		var cname string
		for _, item := range chunk.Items {
			if item.Type == rtcp.SDESCNAME {
				cname = item.Text
			}
		}
		if cname == "" {
			continue
		}

		if chunk.Source == r.localSSRC && cname != r.localCNAME {
			// A remote peer is using our own SSRC under a different
			// identity: collide, allocate a fresh SSRC, and arrange for
			// a BYE to be sent for the old one (spec.md §4.6).
			old := r.localSSRC
			r.localSSRC = r.notifier.ResolveSSRCCollision(old)
			r.pendingBye = append(r.pendingBye, old)
			r.log.Warn().Uint32("old_ssrc", old).Uint32("new_ssrc", r.localSSRC).Msg("local ssrc collision")
			continue
		}

		s, exists := r.streams.get(chunk.Source)
		if exists && s.cname != "" && s.cname != cname {
			// Same SSRC, different CNAME from a remote stream: terminate
			// the old stream and start a fresh one under the same SSRC.
			r.notifier.NotifyHalted(chunk.Source)
			r.streams.remove(chunk.Source)
			s = nil
		}
		if s == nil {
			s = r.streams.getOrCreate(chunk.Source)
		}
		s.cname = cname
		s.lastActivity = now
	}
}

func (r *Reporter) processBYE(bye *rtcp.Goodbye, now time.Time) {
	for _, ssrc := range bye.Sources {
		if s, ok := r.streams.get(ssrc); ok {
			s.halted = true
			r.streams.remove(ssrc)
		}
		r.notifier.NotifyHalted(ssrc)
	}
}

// EvictInactive removes streams not heard from within the configured
// inactivity timeout, notifying Notifier for each (spec.md §4.6).
func (r *Reporter) EvictInactive(now time.Time) {
	for _, ssrc := range r.streams.evictInactive(now, r.cfg.InactivityTimeout) {
		r.notifier.NotifyHalted(ssrc)
	}
}

// Streams returns the current SSRCs being tracked, for Communicator's
// report-generation pass.
func (r *Reporter) Streams() []uint32 {
	ssrcs := make([]uint32, 0, len(r.streams.streams))
	for ssrc := range r.streams.streams {
		ssrcs = append(ssrcs, ssrc)
	}
	return ssrcs
}

// StreamHasSenderInfo reports whether we've recorded an SR from ssrc,
// needed to decide whether a DLRR sub-block can be built for it.
func (r *Reporter) StreamHasSenderInfo(ssrc uint32) (lastSRMid uint32, recvTime time.Time, ok bool) {
	s, found := r.streams.get(ssrc)
	if !found || !s.hasSenderInfo {
		return 0, time.Time{}, false
	}
	return s.lastSRNTPMid, s.lastSRRecvTime, true
}

// StreamHasRRTRInfo reports whether we've recorded an XR/RRTR from ssrc,
// needed to decide whether a reverse-direction DLRR sub-block can be
// built for it (spec.md §4.6 "on inbound XR/RRTR: record as 'LRR'").
func (r *Reporter) StreamHasRRTRInfo(ssrc uint32) (lastRRTRMid uint32, recvTime time.Time, ok bool) {
	s, found := r.streams.get(ssrc)
	if !found || !s.hasRRTRInfo {
		return 0, time.Time{}, false
	}
	return s.lastRRTRNTPMid, s.lastRRTRTime, true
}

// compactFromParts builds the RFC 3611 "middle 32 bits" compact NTP form
// from a full 32-bit seconds/fraction pair, as carried by an RRTR block.
func compactFromParts(seconds, fraction uint32) uint32 {
	return (seconds << 16) | (fraction >> 16)
}

// maxPlausibleRTT bounds the classic LSR/DLSR RTT computation. The
// calculation is done in 16.16 fixed-point (uint32) arithmetic per
// RFC 3550, which wraps rather than going negative when the inputs are
// stale or bogus — so unlike roc_rtcp's nanosecond-domain estimator,
// which simply rejects `rtt < 0`, this needs an upper sanity bound
// instead to catch the wrapped case.
const maxPlausibleRTT = 10 * time.Second

func isPlausibleRTT(rtt time.Duration) bool {
	return rtt >= 0 && rtt <= maxPlausibleRTT
}

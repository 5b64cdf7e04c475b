// SPDX-License-Identifier: MPL-2.0

package wire

import (
	"github.com/pion/rtcp"
)

// builderState tracks which sub-packet (if any) is currently open,
// mirroring `roc_rtcp::Builder`'s state machine (spec.md §4.5). Calls
// made out of order are programming errors and panic, exactly as the
// teacher's own invariant checks do (e.g. media/rtp_sequencer.go).
type builderState int

const (
	stateTop builderState = iota
	stateSR
	stateRR
	stateXR
	stateXRDLRR
	stateSDES
	stateSDESChunk
	stateBYE
)

// Builder assembles a compound RTCP packet into a caller-provided byte
// slice (spec.md §4.5). Unlike the original incremental in-place writer,
// this Go adaptation builds a `[]rtcp.Packet` list and finalizes with a
// single `rtcp.Marshal` call — the same marshal-then-copy idiom the
// teacher uses in `rtcpMarshal` (media/rtp_parse.go) — which keeps every
// RFC 3550 sub-packet's wire encoding delegated to pion/rtcp.
type Builder struct {
	dst []byte
	ok  bool

	state   builderState
	packets []rtcp.Packet

	curSR    *rtcp.SenderReport
	curRR    *rtcp.ReceiverReport
	curXR    *XRPacket
	curDLRR  *DLRRBlock
	curSDES  *rtcp.SourceDescription
	curChunk *rtcp.SourceDescriptionChunk
	chunkHasCNAME bool
	curBYE   *rtcp.Goodbye
}

// NewBuilder constructs a Builder that will write into dst.
func NewBuilder(dst []byte) *Builder {
	return &Builder{dst: dst, ok: true}
}

// OK reports whether the finalized packet fit in the destination slice.
// Bytes clears it when the encoded packet does not fit, and then returns
// nil.
func (b *Builder) OK() bool { return b.ok }

func (b *Builder) requireState(want builderState, op string) {
	if b.state != want {
		panic("rtcp/wire: " + op + " called out of order")
	}
}

func (b *Builder) requireTop(op string) {
	if b.state != stateTop {
		panic("rtcp/wire: " + op + " called while another sub-packet is open")
	}
}

// BeginSR starts an SR sub-packet. SR/RR must be the first sub-packet in
// the compound (spec.md §4.5).
func (b *Builder) BeginSR(sr rtcp.SenderReport) {
	b.requireTop("BeginSR")
	if len(b.packets) != 0 {
		panic("rtcp/wire: SR must be the first sub-packet")
	}
	cp := sr
	b.curSR = &cp
	b.state = stateSR
}

func (b *Builder) AddSRReport(r rtcp.ReceptionReport) {
	b.requireState(stateSR, "AddSRReport")
	b.curSR.Reports = append(b.curSR.Reports, r)
}

// TryAddSRReport adds r to the currently open SR sub-packet if one is
// open, reporting whether it did — a non-panicking counterpart to
// AddSRReport for callers that don't statically know which of SR/RR is
// open (rtcp.Communicator, which builds either depending on whether the
// local participant has outgoing streams).
func (b *Builder) TryAddSRReport(r rtcp.ReceptionReport) bool {
	if b.state != stateSR {
		return false
	}
	b.curSR.Reports = append(b.curSR.Reports, r)
	return true
}

func (b *Builder) EndSR() {
	b.requireState(stateSR, "EndSR")
	b.packets = append(b.packets, b.curSR)
	b.curSR = nil
	b.state = stateTop
}

// BeginRR starts an RR sub-packet (empty RR, with zero reports, is
// permitted per spec.md §4.5).
func (b *Builder) BeginRR(rr rtcp.ReceiverReport) {
	b.requireTop("BeginRR")
	if len(b.packets) != 0 {
		panic("rtcp/wire: RR must be the first sub-packet")
	}
	cp := rr
	b.curRR = &cp
	b.state = stateRR
}

func (b *Builder) AddRRReport(r rtcp.ReceptionReport) {
	b.requireState(stateRR, "AddRRReport")
	b.curRR.Reports = append(b.curRR.Reports, r)
}

// TryAddRRReport is TryAddSRReport's RR counterpart.
func (b *Builder) TryAddRRReport(r rtcp.ReceptionReport) bool {
	if b.state != stateRR {
		return false
	}
	b.curRR.Reports = append(b.curRR.Reports, r)
	return true
}

func (b *Builder) EndRR() {
	b.requireState(stateRR, "EndRR")
	b.packets = append(b.packets, b.curRR)
	b.curRR = nil
	b.state = stateTop
}

// BeginXR starts an XR sub-packet.
func (b *Builder) BeginXR(senderSSRC uint32) {
	b.requireTop("BeginXR")
	b.curXR = &XRPacket{SenderSSRC: senderSSRC}
	b.state = stateXR
}

func (b *Builder) AddXRRRTR(rrtr RRTRBlock) {
	b.requireState(stateXR, "AddXRRRTR")
	b.curXR.Blocks = append(b.curXR.Blocks, rrtr)
}

func (b *Builder) BeginXRDLRR() {
	b.requireState(stateXR, "BeginXRDLRR")
	b.curDLRR = &DLRRBlock{}
	b.state = stateXRDLRR
}

func (b *Builder) AddXRDLRRReport(r DLRRReport) {
	b.requireState(stateXRDLRR, "AddXRDLRRReport")
	b.curDLRR.Reports = append(b.curDLRR.Reports, r)
}

func (b *Builder) EndXRDLRR() {
	b.requireState(stateXRDLRR, "EndXRDLRR")
	b.curXR.Blocks = append(b.curXR.Blocks, *b.curDLRR)
	b.curDLRR = nil
	b.state = stateXR
}

func (b *Builder) AddXRMeasurementInfo(m MeasurementInfoBlock) {
	b.requireState(stateXR, "AddXRMeasurementInfo")
	b.curXR.Blocks = append(b.curXR.Blocks, m)
}

func (b *Builder) AddXRDelayMetrics(d DelayMetricsBlock) {
	b.requireState(stateXR, "AddXRDelayMetrics")
	b.curXR.Blocks = append(b.curXR.Blocks, d)
}

func (b *Builder) AddXRQueueMetrics(q QueueMetricsBlock) {
	b.requireState(stateXR, "AddXRQueueMetrics")
	b.curXR.Blocks = append(b.curXR.Blocks, q)
}

func (b *Builder) EndXR() {
	b.requireState(stateXR, "EndXR")
	b.packets = append(b.packets, b.curXR)
	b.curXR = nil
	b.state = stateTop
}

// BeginSDES starts an SDES sub-packet.
func (b *Builder) BeginSDES() {
	b.requireTop("BeginSDES")
	b.curSDES = &rtcp.SourceDescription{}
	b.state = stateSDES
}

func (b *Builder) BeginSDESChunk(ssrc uint32) {
	b.requireState(stateSDES, "BeginSDESChunk")
	b.curChunk = &rtcp.SourceDescriptionChunk{Source: ssrc}
	b.chunkHasCNAME = false
	b.state = stateSDESChunk
}

// AddSDESItem adds one item to the current chunk. Exactly one CNAME item
// per chunk is required (spec.md §4.5); a second CNAME panics.
func (b *Builder) AddSDESItem(item rtcp.SourceDescriptionItem) {
	b.requireState(stateSDESChunk, "AddSDESItem")
	if item.Type == rtcp.SDESCNAME {
		if b.chunkHasCNAME {
			panic("rtcp/wire: only one CNAME item allowed per SDES chunk")
		}
		b.chunkHasCNAME = true
	}
	b.curChunk.Items = append(b.curChunk.Items, item)
}

func (b *Builder) EndSDESChunk() {
	b.requireState(stateSDESChunk, "EndSDESChunk")
	if !b.chunkHasCNAME {
		panic("rtcp/wire: SDES chunk requires exactly one CNAME item")
	}
	b.curSDES.Chunks = append(b.curSDES.Chunks, *b.curChunk)
	b.curChunk = nil
	b.state = stateSDES
}

func (b *Builder) EndSDES() {
	b.requireState(stateSDES, "EndSDES")
	b.packets = append(b.packets, b.curSDES)
	b.curSDES = nil
	b.state = stateTop
}

// BeginBYE starts a BYE sub-packet, which per spec.md §4.5/§4.7 may
// optionally be the last sub-packet in a generation's compound packet.
func (b *Builder) BeginBYE() {
	b.requireTop("BeginBYE")
	b.curBYE = &rtcp.Goodbye{}
	b.state = stateBYE
}

func (b *Builder) AddBYESSRC(ssrc uint32) {
	b.requireState(stateBYE, "AddBYESSRC")
	b.curBYE.Sources = append(b.curBYE.Sources, ssrc)
}

func (b *Builder) AddBYEReason(reason string) {
	b.requireState(stateBYE, "AddBYEReason")
	b.curBYE.Reason = reason
}

func (b *Builder) EndBYE() {
	b.requireState(stateBYE, "EndBYE")
	b.packets = append(b.packets, b.curBYE)
	b.curBYE = nil
	b.state = stateTop
}

// Bytes finalizes the compound packet, marshaling every sub-packet and
// copying the result into dst. If the encoded packet does not fit,
// nothing is copied, Bytes returns nil, OK() becomes false and the
// caller is expected to start a new Builder
// for the remainder (spec.md §4.5's fragmentation contract; pagination
// across multiple compound packets for RTCP generation is handled one
// level up, by Communicator, rather than by mid-packet truncation here —
// see DESIGN.md).
func (b *Builder) Bytes() []byte {
	if b.state != stateTop {
		panic("rtcp/wire: Bytes called with an open sub-packet")
	}
	if len(b.packets) == 0 {
		panic("rtcp/wire: at least one sub-packet is required")
	}
	switch b.packets[0].(type) {
	case *rtcp.SenderReport, *rtcp.ReceiverReport:
	default:
		panic("rtcp/wire: first sub-packet must be SR or RR")
	}

	raw, err := rtcp.Marshal(b.packets)
	if err != nil {
		b.ok = false
		return nil
	}
	if len(raw) > len(b.dst) {
		b.ok = false
		return nil
	}
	n := copy(b.dst, raw)
	return b.dst[:n]
}

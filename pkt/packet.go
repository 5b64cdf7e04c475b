// SPDX-License-Identifier: MPL-2.0

package pkt

import "time"

// Flags is a bitset tracking a packet's protocol sub-records and its
// position in the Prepared/Composed/Restored lifecycle (spec.md §3).
type Flags uint32

const (
	FlagUDP Flags = 1 << iota
	FlagRTP
	FlagFEC
	FlagRTCP
	FlagAudio
	FlagRepair

	// FlagPrepared: buffer allocated, headers reserved, exclusive
	// mutable access to the packet.
	FlagPrepared
	// FlagComposed: headers written, read-only from here on.
	FlagComposed
	// FlagRestored: reconstructed by the FEC decoder, not received
	// from the network.
	FlagRestored
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// UDP carries socket-level metadata. src_addr/dst_addr are opaque to the
// core (spec.md treats the transport as an external collaborator) so they
// are stored as strings rather than net.Addr to avoid importing net here.
type UDP struct {
	SrcAddr          string
	DstAddr          string
	ReceiveTimestamp int64 // ns since epoch
}

// RTP carries the RTP sub-record (spec.md §3).
type RTP struct {
	SourceID        uint32 // SSRC
	SeqNum          uint16 // wraps
	StreamTimestamp uint32 // wraps, source sample rate ticks
	Duration        uint32 // samples
	CaptureTs       int64  // ns since epoch, 0 = unset
	Marker          bool
	PayloadType     uint8
	Payload         Slice
}

// FECScheme is a closed tagged enum over the FEC codecs the core knows
// how to frame (spec.md §9 "map to tagged variants where the set is
// closed").
type FECScheme uint8

const (
	FECSchemeNone FECScheme = iota
	FECSchemeRS8M
	FECSchemeLDPCStaircase
)

// FEC carries the FEC sub-record (spec.md §3, §6).
type FEC struct {
	Scheme            FECScheme
	EncodingSymbolID  uint32 // ESI
	SourceBlockNumber uint16 // SBN, wraps
	SourceBlockLength uint16 // k
	BlockLength       uint16 // k+r
	PayloadID         Slice  // header/footer bytes
	Payload           Slice
}

// RTCP carries the RTCP sub-record (spec.md §3).
type RTCP struct {
	Payload Slice
}

// Packet is a pool-allocated record carrying any subset of
// {UDP, RTP, FEC, RTCP} sub-records plus the shared buffer they were
// composed into (spec.md §3).
type Packet struct {
	Flags  Flags
	UDP    *UDP
	RTP    *RTP
	FEC    *FEC
	RTCP   *RTCP
	Buffer Slice
}

// IsSource reports whether this packet's flags are consistent with a
// source (audio-carrying) packet per spec.md §3's invariant.
func (p *Packet) IsSource() bool {
	return p.Flags.Has(FlagAudio) && (p.Flags.Has(FlagFEC) || p.Flags.Has(FlagRTP))
}

// IsRepair reports whether this packet's flags are consistent with a
// FEC repair packet per spec.md §3's invariant.
func (p *Packet) IsRepair() bool {
	return p.Flags.Has(FlagFEC) && p.Flags.Has(FlagRepair)
}

// reset clears a packet for reuse from the Factory pool.
func (p *Packet) reset() {
	p.Flags = 0
	p.UDP = nil
	p.RTP = nil
	p.FEC = nil
	p.RTCP = nil
	p.Buffer = Slice{}
}

// Now is overridable in tests; production code leaves it as time.Now.
var Now = time.Now

// SPDX-License-Identifier: MPL-2.0

package wire

import (
	"errors"

	"github.com/pion/rtcp"
)

// packetTypeApp is RFC 3550's APP packet type; it has no payload this
// traverser understands and is always skipped, exactly like the original
// roc_rtcp::Traverser's RTCP_APP case.
const packetTypeApp = 204

var (
	// ErrInvalidCompoundPacket is returned by Validate when the buffer
	// fails any of RFC 3550's compound-packet structural checks.
	ErrInvalidCompoundPacket = errors.New("rtcp/wire: invalid compound rtcp packet")
)

// Traverser parses a compound RTCP packet, dispatching each sub-packet to
// a concrete pion/rtcp type (or *XRPacket for XR), the same
// header-then-typed-unmarshal pattern the teacher's RTCPUnmarshal uses
// (media/rtp_parse.go), extended with the XR type RFC 3611 adds.
type Traverser struct {
	data []byte
}

// NewTraverser constructs a Traverser over data. Call Validate before
// Packets.
func NewTraverser(data []byte) *Traverser {
	return &Traverser{data: data}
}

// Validate checks RFC 3550's compound-packet structural rules:
//   - every sub-packet's RTP version field is 2
//   - the first sub-packet's type is SR or RR
//   - the length fields of the individual packets add up to the total
//     buffer length
//   - every sub-packet starts on a 4-byte boundary
func (t *Traverser) Validate() bool {
	data := t.data
	if len(data) == 0 {
		return false
	}
	first := true
	for i := 0; i < len(data); {
		if i+4 > len(data) {
			return false
		}
		var h rtcp.Header
		if err := h.Unmarshal(data[i:]); err != nil {
			// Unmarshal itself rejects a version other than 2, so a
			// successful parse already satisfies RFC 3550's version check.
			return false
		}
		if first {
			if h.Type != rtcp.TypeSenderReport && h.Type != rtcp.TypeReceiverReport {
				return false
			}
			first = false
		}

		pktLen := (int(h.Length) + 1) * 4
		if i+pktLen > len(data) {
			return false
		}
		i += pktLen
		if i&0x03 != 0 {
			return false
		}
	}
	return true
}

// Packets parses every sub-packet in the compound buffer. Unlike the
// original's lazy Iterator, this returns the full decoded list at once —
// idiomatic for Go callers, and cheap here since RTCP generations are
// small (spec.md §4.5/§4.7 bounds them to a handful of sub-packets).
// Unknown sub-packet types (including APP) are silently skipped, per the
// original's default case.
func (t *Traverser) Packets() ([]rtcp.Packet, error) {
	if !t.Validate() {
		return nil, ErrInvalidCompoundPacket
	}

	var out []rtcp.Packet
	data := t.data
	for len(data) > 0 {
		var h rtcp.Header
		if err := h.Unmarshal(data); err != nil {
			return nil, errors.Join(err, ErrInvalidCompoundPacket)
		}
		pktLen := (int(h.Length) + 1) * 4
		if pktLen > len(data) {
			return nil, ErrInvalidCompoundPacket
		}
		raw := data[:pktLen]
		data = data[pktLen:]

		if h.Type == packetTypeApp {
			continue
		}

		packet := typedPacket(h.Type)
		if packet == nil {
			continue
		}
		if err := packet.Unmarshal(raw); err != nil {
			return nil, err
		}
		out = append(out, packet)
	}
	return out, nil
}

// typedPacket mirrors the teacher's rtcpTypedPacket (media/rtp_parse.go),
// extended with the XR type pion/rtcp does not implement. Returns nil for
// types this traverser skips.
func typedPacket(htype rtcp.PacketType) rtcp.Packet {
	switch htype {
	case rtcp.TypeSenderReport:
		return new(rtcp.SenderReport)
	case rtcp.TypeReceiverReport:
		return new(rtcp.ReceiverReport)
	case rtcp.TypeSourceDescription:
		return new(rtcp.SourceDescription)
	case rtcp.TypeGoodbye:
		return new(rtcp.Goodbye)
	case rtcp.PacketType(packetTypeXR):
		return new(XRPacket)
	default:
		return nil
	}
}

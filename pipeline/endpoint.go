// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"

	"github.com/rocwire/rocwire/fec"
	"github.com/rocwire/rocwire/pkt"
)

// Interface is one of the three endpoint roles spec.md §6 names.
type Interface int

const (
	AudioSource Interface = iota
	AudioRepair
	AudioControl
)

func (i Interface) String() string {
	switch i {
	case AudioSource:
		return "AudioSource"
	case AudioRepair:
		return "AudioRepair"
	case AudioControl:
		return "AudioControl"
	default:
		return "Unknown"
	}
}

// Protocol is one of the wire protocols spec.md §6 names for an
// endpoint.
type Protocol int

const (
	ProtoRTP Protocol = iota
	ProtoRTPRS8MSource
	ProtoRS8MRepair
	ProtoRTPLDPCSource
	ProtoLDPCRepair
	ProtoRTCP
)

// fecScheme reports the FEC scheme a source/repair protocol belongs to,
// or SchemeNone for RTP/RTCP.
func (p Protocol) fecScheme() fec.Scheme {
	switch p {
	case ProtoRTPRS8MSource, ProtoRS8MRepair:
		return fec.SchemeRS8M
	case ProtoRTPLDPCSource, ProtoLDPCRepair:
		return fec.SchemeLDPCStaircase
	default:
		return fec.SchemeNone
	}
}

func (p Protocol) isRepair() bool {
	return p == ProtoRS8MRepair || p == ProtoLDPCRepair
}

// PacketWriter is what an Endpoint writes composed packets to — the
// downstream network transport (small-interface style, grounded on
// fec.PacketWriter and media.RTPWriter/RTCPWriter's writer-only split).
type PacketWriter interface {
	WritePacket(p *pkt.Packet) error
}

// Endpoint binds one (Interface, Protocol, outbound sink) triple (spec.md
// §6). Senders fan packets out to one Endpoint per interface; receivers
// use the same triple to validate and label inbound queues.
type Endpoint struct {
	Interface Interface
	Protocol  Protocol
	Writer    PacketWriter
}

// ErrIncompatibleProtocol is returned by ValidateEndpoint when a
// protocol cannot be bound to the given interface.
var ErrIncompatibleProtocol = errors.New("pipeline: protocol incompatible with interface")

// ValidateEndpoint checks an endpoint's protocol/interface compatibility
// (spec.md §6). It does not check cross-endpoint FEC-scheme pairing;
// use ValidateEndpointPair for a source+repair pair.
func ValidateEndpoint(e Endpoint) error {
	var want Interface
	switch e.Protocol {
	case ProtoRTP, ProtoRTPRS8MSource, ProtoRTPLDPCSource:
		want = AudioSource
	case ProtoRS8MRepair, ProtoLDPCRepair:
		want = AudioRepair
	case ProtoRTCP:
		want = AudioControl
	default:
		return fmt.Errorf("%w: unknown protocol %d", ErrBadEndpoint, e.Protocol)
	}
	if e.Interface != want {
		return fmt.Errorf("%w: protocol %d requires interface %s, got %s", ErrIncompatibleProtocol, e.Protocol, want, e.Interface)
	}
	if e.Writer == nil {
		return fmt.Errorf("%w: endpoint has no writer", ErrBadEndpoint)
	}
	return nil
}

// ValidateEndpointPair checks the source+repair consistency rule from
// spec.md §6: "source+repair must share FEC scheme, or both be none".
// Either endpoint may be the zero value (omitted) if this slot uses no
// FEC or the other direction isn't wired.
func ValidateEndpointPair(source, repair Endpoint, haveRepair bool) error {
	if !haveRepair {
		return nil
	}
	if source.Protocol.fecScheme() != repair.Protocol.fecScheme() {
		return fmt.Errorf("%w: source/repair endpoints must share an FEC scheme", ErrBadEndpoint)
	}
	if !repair.Protocol.isRepair() {
		return fmt.Errorf("%w: repair endpoint must use a repair protocol", ErrBadEndpoint)
	}
	return nil
}

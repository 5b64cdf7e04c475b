// SPDX-License-Identifier: MPL-2.0

package fec

import (
	"encoding/binary"

	"github.com/rocwire/rocwire/pkt"
)

// Composer fills a packet's FEC header/footer bytes once its FEC
// sub-record fields (SBN, ESI, lengths) have been assigned, per spec.md
// §4.1's "composes the source packet (fills header+footer bytes via the
// composer abstraction)". Source packets get a *footer* (RTP header +
// payload + FEC footer); repair packets get a *header* (spec.md §6).
type Composer interface {
	// FooterSize/HeaderSize report how many bytes ComposeSource/
	// ComposeRepair need, so BlockWriter can reserve the PayloadID slice.
	FooterSize() int
	HeaderSize() int
	ComposeSource(p *pkt.Packet) error
	ComposeRepair(p *pkt.Packet) error
}

// wireComposer implements the RS8M/LDPC-Staircase footer/header layout
// from spec.md §6: source_block_number(16) | encoding_symbol_id(16) |
// source_block_length(16), big-endian, identical for both schemes (the
// spec calls the LDPC one "analogous").
type wireComposer struct{}

func newWireComposer(scheme Scheme) Composer { return wireComposer{} }

func (wireComposer) FooterSize() int { return 6 }
func (wireComposer) HeaderSize() int { return 6 }

func (wireComposer) ComposeSource(p *pkt.Packet) error {
	return composeFECFields(p, p.FEC.PayloadID)
}

func (wireComposer) ComposeRepair(p *pkt.Packet) error {
	return composeFECFields(p, p.FEC.PayloadID)
}

func composeFECFields(p *pkt.Packet, id pkt.Slice) error {
	if id.Len() < 6 {
		return ErrBadBuffer
	}
	b := id.Bytes()
	binary.BigEndian.PutUint16(b[0:2], p.FEC.SourceBlockNumber)
	binary.BigEndian.PutUint16(b[2:4], uint16(p.FEC.EncodingSymbolID))
	binary.BigEndian.PutUint16(b[4:6], p.FEC.SourceBlockLength)
	p.Flags |= pkt.FlagComposed
	return nil
}

// ParseFECFields reads SBN/ESI/k back out of a received packet's FEC
// PayloadID slice, for use by BlockReader.
func ParseFECFields(id pkt.Slice) (sbn uint16, esi uint16, k uint16, ok bool) {
	if id.Len() < 6 {
		return 0, 0, 0, false
	}
	b := id.Bytes()
	return binary.BigEndian.Uint16(b[0:2]), binary.BigEndian.Uint16(b[2:4]), binary.BigEndian.Uint16(b[4:6]), true
}

// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"time"

	"github.com/rocwire/rocwire/fec"
	"github.com/rocwire/rocwire/pkt"
)

// Packetizer turns one wire-rate, wire-channel Frame into a Prepared
// *pkt.Packet carrying an RTP sub-record, grounded on the teacher's
// RTPPacketWriter.WriteSamples (media/rtp_packet_writer.go, since
// removed): a monotonic sequence number from SequenceTracker, a stream
// timestamp that advances by the frame's sample count, and a single
// SSRC for the life of the stream. When fecScheme is not None, a 6-byte
// footer is reserved for fec.BlockWriter's composer to fill (spec.md
// §6); otherwise the packetizer composes the (FEC-less) packet itself.
type Packetizer struct {
	factory     *pkt.Factory
	wireSpec    SampleSpec
	payloadType uint8
	ssrc        uint32
	scheme      fec.Scheme

	seq    SequenceTracker
	nextTs uint32

	packetCount uint32
	octetCount  uint32
}

// NewPacketizer constructs a Packetizer for one outgoing stream.
func NewPacketizer(factory *pkt.Factory, wireSpec SampleSpec, payloadType uint8, ssrc uint32, scheme fec.Scheme) *Packetizer {
	return &Packetizer{
		factory:     factory,
		wireSpec:    wireSpec,
		payloadType: payloadType,
		ssrc:        ssrc,
		scheme:      scheme,
		seq:         NewSequenceTracker(),
	}
}

// Packetize encodes frame (already at wireSpec's rate/channel count) as
// L16 PCM and wraps it in a packet ready for the FEC writer (or, with no
// FEC configured, ready for the router directly).
func (pz *Packetizer) Packetize(frame Frame) (*pkt.Packet, error) {
	payload := EncodeL16(frame.Samples)
	footerSize := 0
	if pz.scheme != fec.SchemeNone {
		footerSize = 6
	}

	p := pz.factory.New(len(payload) + footerSize)
	p.Flags = pkt.FlagPrepared | pkt.FlagAudio
	p.Buffer.Extend(len(payload) + footerSize)
	dataSlice := p.Buffer.Reslice(0, len(payload))
	copy(dataSlice.Bytes(), payload)

	samplesPerChannel := 0
	if pz.wireSpec.Channels > 0 {
		samplesPerChannel = len(frame.Samples) / pz.wireSpec.Channels
	}

	p.RTP = &pkt.RTP{
		SourceID:        pz.ssrc,
		SeqNum:          pz.seq.Next(),
		StreamTimestamp: pz.nextTs,
		Duration:        uint32(samplesPerChannel),
		CaptureTs:       frame.CaptureTimestamp,
		PayloadType:     pz.payloadType,
		Payload:         dataSlice,
	}
	pz.nextTs += uint32(samplesPerChannel)
	pz.packetCount++
	pz.octetCount += uint32(len(payload))

	if footerSize > 0 {
		footerSlice := p.Buffer.Reslice(len(payload), footerSize)
		p.FEC = &pkt.FEC{
			Scheme:    pkt.FECScheme(pz.scheme),
			PayloadID: footerSlice,
		}
		p.Flags |= pkt.FlagFEC
	} else {
		p.Flags |= pkt.FlagRTP | pkt.FlagComposed
	}
	return p, nil
}

// Stats returns the running packet/octet counters an SR needs (spec.md
// §4.7).
func (pz *Packetizer) Stats() (packetCount, octetCount uint32) {
	return pz.packetCount, pz.octetCount
}

// RTPTimestamp returns the stream timestamp the next packet will carry,
// for SR generation between packets.
func (pz *Packetizer) RTPTimestamp() uint32 { return pz.nextTs }

// Depacketizer is the receive-side inverse of Packetizer: it decodes a
// composed/restored source packet's payload back into a Frame (spec.md
// §4.8 "depacketizer"). It carries no sequencing state of its own —
// ordering and loss recovery already happened upstream, in
// fec.BlockReader.
type Depacketizer struct {
	wireSpec SampleSpec
}

// NewDepacketizer constructs a Depacketizer for packets encoded at
// wireSpec's rate/channel count.
func NewDepacketizer(wireSpec SampleSpec) *Depacketizer {
	return &Depacketizer{wireSpec: wireSpec}
}

// Depacketize decodes p's RTP payload into a Frame. A restored packet
// (FEC-reconstructed, spec.md §4.2) is marked FrameHasGaps rather than
// FrameHasSignal, since its samples are a decoder's best effort, not
// what was actually captured.
func (d *Depacketizer) Depacketize(p *pkt.Packet) Frame {
	samples := DecodeL16(p.RTP.Payload.Bytes())
	flags := FrameHasSignal
	if p.Flags.Has(pkt.FlagRestored) {
		flags = FrameHasGaps
	}
	samplesPerChannel := 0
	if d.wireSpec.Channels > 0 {
		samplesPerChannel = len(samples) / d.wireSpec.Channels
	}
	return Frame{
		Samples:          samples,
		Duration:         samplesPerChannelToDuration(samplesPerChannel, d.wireSpec.SampleRate),
		CaptureTimestamp: p.RTP.CaptureTs,
		Flags:            flags,
	}
}

func samplesPerChannelToDuration(samples int, sampleRate uint32) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(int64(samples) * int64(time.Second) / int64(sampleRate))
}

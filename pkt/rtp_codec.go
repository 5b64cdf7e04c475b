// SPDX-License-Identifier: MPL-2.0

package pkt

import "github.com/pion/rtp"

// EncodeRTP serializes p's RTP sub-record as a wire RTP packet (spec.md
// §6's external boundary: everything inside the core is a *Packet,
// everything past the UDP socket is bytes). p.RTP must be set. Any FEC
// footer is appended to the RTP payload verbatim, since spec.md §6
// frames FEC wire fields as trailing payload bytes rather than an RTP
// header extension.
func EncodeRTP(p *Packet) ([]byte, error) {
	if p.RTP == nil {
		panic("pkt: EncodeRTP requires an RTP sub-record")
	}
	payload := p.RTP.Payload.Bytes()
	if p.FEC != nil && p.FEC.PayloadID.Len() > 0 {
		buf := make([]byte, len(payload)+p.FEC.PayloadID.Len())
		copy(buf, payload)
		copy(buf[len(payload):], p.FEC.PayloadID.Bytes())
		payload = buf
	}
	out := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         p.RTP.Marker,
			PayloadType:    p.RTP.PayloadType,
			SequenceNumber: p.RTP.SeqNum,
			Timestamp:      p.RTP.StreamTimestamp,
			SSRC:           p.RTP.SourceID,
		},
		Payload: payload,
	}
	return out.Marshal()
}

// DecodeRTP parses a wire RTP packet into a fresh Packet allocated from
// factory, flagged Prepared|Audio|RTP|Composed. The FEC footer, if the
// caller's protocol carries one, is still part of the decoded payload
// tail — fec.ParseFECFields (fec/wire.go) splits it off once the caller
// knows the scheme, since DecodeRTP itself has no FEC-scheme context.
func DecodeRTP(factory *Factory, buf []byte) (*Packet, error) {
	var rp rtp.Packet
	if err := rp.Unmarshal(buf); err != nil {
		return nil, err
	}
	p := factory.New(len(rp.Payload))
	p.Flags = FlagPrepared | FlagAudio | FlagRTP | FlagComposed
	p.Buffer.Extend(len(rp.Payload))
	slice := p.Buffer.Reslice(0, len(rp.Payload))
	copy(slice.Bytes(), rp.Payload)
	p.RTP = &RTP{
		SourceID:        rp.SSRC,
		SeqNum:          rp.SequenceNumber,
		StreamTimestamp: rp.Timestamp,
		Marker:          rp.Marker,
		PayloadType:     rp.PayloadType,
		Payload:         slice,
	}
	return p, nil
}

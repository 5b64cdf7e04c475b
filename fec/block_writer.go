// SPDX-License-Identifier: MPL-2.0

package fec

import (
	"math/rand"

	"github.com/rocwire/rocwire/pkt"
	"github.com/rs/zerolog"
)

// PacketWriter is the downstream sink BlockWriter emits composed
// source/repair packets to (spec.md §4.1 "writes... to the downstream
// packet writer"), grounded on the teacher's small-interface style
// (media.RTPWriter) rather than one fat transport type.
type PacketWriter interface {
	WritePacket(p *pkt.Packet) error
}

// BlockWriter groups a sequence of prepared source packets into blocks
// of k, generates r repair packets per block, and writes all k+r to a
// downstream PacketWriter (spec.md §4.1).
type BlockWriter struct {
	scheme   Scheme
	codec    Codec
	composer Composer
	factory  *pkt.Factory
	out      PacketWriter
	log      zerolog.Logger

	k, r       int
	pendingK   int
	pendingR   int
	resizeSet  bool

	sbn           uint16
	payloadSize   int
	blockOpen     bool
	sourcePayload []pkt.Slice // retained references, len up to k

	firstStreamTs      uint32
	havePrevFirstTs     bool
	prevFirstTs         uint32
	maxBlockDuration     uint32
	blockDurationValid   bool
}

// NewBlockWriter constructs a BlockWriter for the given scheme/codec. k
// and r are the initial block dimensions (spec.md §6 FecWriterConfig).
func NewBlockWriter(scheme Scheme, codec Codec, composer Composer, factory *pkt.Factory, out PacketWriter, k, r int, log zerolog.Logger) (*BlockWriter, error) {
	if composer == nil {
		composer = newWireComposer(scheme)
	}
	w := &BlockWriter{
		scheme:   scheme,
		codec:    codec,
		composer: composer,
		factory:  factory,
		out:      out,
		log:      log.With().Str("component", "fec.block_writer").Logger(),
		sbn:      uint16(rand.Uint32()),
	}
	if err := w.resizeNow(k, r); err != nil {
		return nil, err
	}
	return w, nil
}

// Resize requests new block dimensions for subsequent blocks (spec.md
// §4.1). If a block is currently open, it completes with the old
// dimensions; the new ones take effect at the next block boundary.
func (w *BlockWriter) Resize(k, r int) error {
	if k == 0 {
		return ErrBadConfig
	}
	if w.codec.Encoder != nil && k+r > w.codec.Encoder.MaxBlockLength() {
		return ErrBadConfig
	}
	if !w.blockOpen {
		return w.resizeNow(k, r)
	}
	w.pendingK, w.pendingR = k, r
	w.resizeSet = true
	return nil
}

func (w *BlockWriter) resizeNow(k, r int) error {
	if k == 0 {
		return ErrBadConfig
	}
	if w.codec.Encoder != nil && k+r > w.codec.Encoder.MaxBlockLength() {
		return ErrBadConfig
	}
	w.k, w.r = k, r
	return nil
}

// MaxBlockDuration returns the largest RTP stream-timestamp delta seen
// between the first packets of consecutive blocks, used by the receiver
// to size its reorder window (spec.md §4.1).
func (w *BlockWriter) MaxBlockDuration() (uint32, bool) {
	return w.maxBlockDuration, w.blockDurationValid
}

// Write validates and composes one source packet and writes it
// downstream at once, keeping a reference to its payload until the block
// is complete and its repair packets are generated (spec.md §4.1).
func (w *BlockWriter) Write(p *pkt.Packet) error {
	if !p.Flags.Has(pkt.FlagPrepared) || p.Flags.Has(pkt.FlagComposed) {
		panic("fec: BlockWriter.Write requires a Prepared, not-yet-Composed packet")
	}
	if p.FEC == nil || p.RTP == nil {
		panic("fec: BlockWriter.Write requires FEC and RTP sub-records")
	}
	if p.FEC.Scheme != pkt.FECScheme(w.scheme) {
		panic("fec: BlockWriter.Write scheme mismatch")
	}
	if p.RTP.Payload.Len() == 0 {
		return ErrBadBuffer
	}

	if !w.blockOpen {
		w.payloadSize = p.RTP.Payload.Len()
		w.blockOpen = true
		w.sourcePayload = make([]pkt.Slice, 0, w.k)
		w.firstStreamTs = p.RTP.StreamTimestamp
		w.trackBlockDuration()
	} else if p.RTP.Payload.Len() != w.payloadSize {
		panic("fec: payload size changed mid-block")
	}

	esi := len(w.sourcePayload)
	p.FEC.EncodingSymbolID = uint32(esi)
	p.FEC.SourceBlockNumber = w.sbn
	p.FEC.SourceBlockLength = uint16(w.k)
	p.FEC.BlockLength = uint16(w.k + w.r)
	p.Flags |= pkt.FlagFEC

	if err := w.composer.ComposeSource(p); err != nil {
		return err
	}

	p.RTP.Payload.Retain()
	w.sourcePayload = append(w.sourcePayload, p.RTP.Payload)

	if err := w.out.WritePacket(p); err != nil {
		return err
	}

	if esi == w.k-1 {
		return w.completeBlock()
	}
	return nil
}

func (w *BlockWriter) trackBlockDuration() {
	if !w.havePrevFirstTs {
		w.havePrevFirstTs = true
		w.prevFirstTs = w.firstStreamTs
		w.blockDurationValid = false
		return
	}
	delta := int32(w.firstStreamTs - w.prevFirstTs)
	w.prevFirstTs = w.firstStreamTs
	if delta < 0 {
		w.blockDurationValid = false
		return
	}
	d := uint32(delta)
	if !w.blockDurationValid || d > w.maxBlockDuration {
		w.maxBlockDuration = d
	}
	w.blockDurationValid = true
}

func (w *BlockWriter) completeBlock() error {
	sourceBytes := make([][]byte, len(w.sourcePayload))
	for i, s := range w.sourcePayload {
		sourceBytes[i] = s.Bytes()
	}

	var repairErr error
	if w.r > 0 {
		repairPayloads, err := w.codec.Encoder.Encode(sourceBytes, w.r)
		if err != nil {
			repairErr = err
		} else {
			for i, payload := range repairPayloads {
				rp := w.factory.New(w.composer.HeaderSize() + len(payload))
				rp.Flags |= pkt.FlagFEC | pkt.FlagRepair
				rp.Buffer.Extend(w.composer.HeaderSize() + len(payload))
				idSlice := rp.Buffer.Reslice(0, w.composer.HeaderSize())
				dataSlice := rp.Buffer.Reslice(w.composer.HeaderSize(), len(payload))
				copy(dataSlice.Bytes(), payload)
				rp.FEC = &pkt.FEC{
					Scheme:            pkt.FECScheme(w.scheme),
					EncodingSymbolID:  uint32(w.k + i),
					SourceBlockNumber: w.sbn,
					SourceBlockLength: uint16(w.k),
					BlockLength:       uint16(w.k + w.r),
					PayloadID:         idSlice,
					Payload:           dataSlice,
				}
				if err := w.composer.ComposeRepair(rp); err != nil {
					w.factory.Release(rp)
					repairErr = err
					break
				}
				if err := w.out.WritePacket(rp); err != nil {
					repairErr = err
					break
				}
			}
		}
	}

	for _, s := range w.sourcePayload {
		s.Release(w.factory.Pool())
	}
	w.sourcePayload = nil
	w.blockOpen = false
	w.sbn++

	if w.resizeSet {
		w.resizeSet = false
		_ = w.resizeNow(w.pendingK, w.pendingR)
	}

	if repairErr != nil {
		w.log.Warn().Err(repairErr).Msg("fec block aborted during repair generation")
		return repairErr
	}
	return nil
}

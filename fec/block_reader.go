// SPDX-License-Identifier: MPL-2.0

package fec

import (
	"time"

	"github.com/rocwire/rocwire/pkt"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ReaderStats are the loss/late/recovered counters from spec.md §4.2's
// failure semantics ("surfaced as gaps in the emitted stream plus
// counters").
type ReaderStats struct {
	Lost      uint64 // source packets declared lost at block expiry
	Late      uint64 // packets dropped as belonging to a closed/expired block
	Recovered uint64 // source packets reconstructed by the decoder
	Dropped   uint64 // packets dropped for other reasons (size mismatch etc)
}

// sbnDiff returns the wrap-safe signed 16-bit distance a-b (spec.md §3
// "SBN values are compared modulo 2^16 with signed arithmetic").
func sbnDiff(a, b uint16) int32 { return int32(int16(a - b)) }

// BlockReader reorders received source and repair packets by sequence,
// reconstructs missing source packets via the block decoder, and emits a
// gap-free stream in strict (SBN, ESI) order (spec.md §4.2).
type BlockReader struct {
	scheme     Scheme
	codec      Codec
	factory    *pkt.Factory
	out        PacketWriter
	windowSize int
	maxSBNJump int

	blocks       map[uint16]*block
	haveLeading  bool
	leading      uint16

	stats   ReaderStats
	dropLog *rate.Limiter
	log     zerolog.Logger
}

// NewBlockReader constructs a BlockReader. windowSize bounds how many
// blocks behind the leading edge are kept open before expiring (spec.md
// §4.2's sliding reorder window).
func NewBlockReader(scheme Scheme, codec Codec, factory *pkt.Factory, out PacketWriter, windowSize int, log zerolog.Logger) *BlockReader {
	if windowSize <= 0 {
		windowSize = 64
	}
	return &BlockReader{
		scheme:     scheme,
		codec:      codec,
		factory:    factory,
		out:        out,
		windowSize: windowSize,
		maxSBNJump: windowSize,
		blocks:     make(map[uint16]*block),
		dropLog:    rate.NewLimiter(rate.Every(time.Second), 5),
		log:        log.With().Str("component", "fec.block_reader").Logger(),
	}
}

// Stats returns a snapshot of the reader's loss/late/recovered counters.
func (r *BlockReader) Stats() ReaderStats { return r.stats }

// Write accepts one received source or repair packet. p.FEC must already
// carry the parsed SBN/ESI/k/(k+r) fields (spec.md §6 wire format
// parsing is the caller's concern; BlockReader only does block framing).
// Write never blocks and never returns an error for ordinary loss —
// spec.md §4.2: "reader is forward-only; it never blocks on missing
// data".
// WritePacket implements PacketWriter, letting a BlockReader be wired
// directly as a BlockWriter's (or any transport's) downstream sink.
func (r *BlockReader) WritePacket(p *pkt.Packet) error { return r.Write(p) }

func (r *BlockReader) Write(p *pkt.Packet) error {
	if p.FEC == nil {
		panic("fec: BlockReader.Write requires a FEC sub-record")
	}
	sbn := p.FEC.SourceBlockNumber
	esi := int(p.FEC.EncodingSymbolID)
	k := int(p.FEC.SourceBlockLength)
	total := int(p.FEC.BlockLength)
	r_ := total - k

	if !r.haveLeading {
		r.haveLeading = true
		r.leading = sbn
	} else if d := sbnDiff(sbn, r.leading); d > 0 {
		r.leading = sbn
		r.expireOldBlocks()
	}

	if d := sbnDiff(r.leading, sbn); d >= int32(r.windowSize) {
		r.rateLimitedDrop("packet for expired block dropped")
		r.stats.Late++
		return nil
	}

	blk, ok := r.blocks[sbn]
	if !ok {
		blk = newBlock(sbn, k, r_)
		r.blocks[sbn] = blk
	}
	if blk.state != blockOpen {
		r.rateLimitedDrop("packet for closed block dropped")
		r.stats.Late++
		return nil
	}

	var payloadLen int
	var slice pkt.Slice
	if esi < k {
		payloadLen = p.RTP.Payload.Len()
		slice = p.RTP.Payload
	} else {
		payloadLen = p.FEC.Payload.Len()
		slice = p.FEC.Payload
	}
	if blk.payloadSize == 0 {
		blk.payloadSize = payloadLen
	} else if payloadLen != blk.payloadSize {
		r.stats.Dropped++
		if esi < k {
			blk.unrecoverable = true
		}
		return nil
	}

	if esi < k {
		if !blk.source[esi].present {
			slice.Retain()
			blk.source[esi] = sourceSlot{
				present: true,
				payload: slice.Bytes(),
				slice:   slice,
			}
			if p.RTP != nil {
				blk.source[esi].streamTs = p.RTP.StreamTimestamp
				blk.source[esi].captureTs = p.RTP.CaptureTs
				blk.source[esi].marker = p.RTP.Marker
				blk.source[esi].seqnum = p.RTP.SeqNum
			}
			blk.receivedSource++
		}
	} else {
		ridx := esi - k
		if ridx >= 0 && ridx < blk.r && blk.repair[ridx] == nil {
			slice.Retain()
			blk.repair[ridx] = slice.Bytes()
			blk.repairSlices[ridx] = slice
			blk.receivedRepair++
		}
	}

	r.tryDecode(blk)
	r.tryEmit(blk)
	return nil
}

func (r *BlockReader) tryDecode(blk *block) {
	if blk.receivedSource == blk.k || blk.unrecoverable {
		return
	}
	if blk.totalReceived() < blk.k || r.codec.Decoder == nil {
		return
	}
	sourceBytes := make([][]byte, blk.k)
	for i, s := range blk.source {
		if s.present {
			sourceBytes[i] = s.payload
		}
	}
	recovered, ok, err := r.codec.Decoder.Decode(sourceBytes, blk.repair)
	if err != nil {
		r.log.Debug().Err(err).Uint16("sbn", blk.sbn).Msg("fec decode failed, will retry")
		return
	}
	if !ok {
		return
	}
	for idx, payload := range recovered {
		if blk.source[idx].present {
			continue
		}
		streamTs, captureTs := blk.interpolate(idx)
		blk.source[idx] = sourceSlot{
			present:   true,
			restored:  true,
			payload:   payload,
			streamTs:  streamTs,
			captureTs: captureTs,
		}
		blk.receivedSource++
		r.stats.Recovered++
	}
}

func (r *BlockReader) tryEmit(blk *block) {
	for blk.nextEmit < blk.k && blk.source[blk.nextEmit].present {
		slot := blk.source[blk.nextEmit]
		out := r.makeEmitPacket(blk, blk.nextEmit, slot)
		if err := r.out.WritePacket(out); err != nil {
			r.log.Warn().Err(err).Msg("fec: downstream write failed")
		}
		blk.nextEmit++
	}
	if blk.nextEmit == blk.k {
		r.closeBlock(blk)
	}
}

func (r *BlockReader) makeEmitPacket(blk *block, esi int, slot sourceSlot) *pkt.Packet {
	out := r.factory.New(0)
	out.Flags = pkt.FlagFEC | pkt.FlagAudio | pkt.FlagComposed
	var payloadSlice pkt.Slice
	if slot.restored {
		out.Flags |= pkt.FlagRestored
		payloadSlice = r.factory.Pool().Get(len(slot.payload))
		payloadSlice.Extend(len(slot.payload))
		copy(payloadSlice.Bytes(), slot.payload)
	} else {
		payloadSlice = slot.slice
	}
	out.RTP = &pkt.RTP{
		StreamTimestamp: slot.streamTs,
		CaptureTs:       slot.captureTs,
		Marker:          slot.marker,
		SeqNum:          slot.seqnum,
		Payload:         payloadSlice,
	}
	out.FEC = &pkt.FEC{
		Scheme:            pkt.FECScheme(r.scheme),
		EncodingSymbolID:  uint32(esi),
		SourceBlockNumber: blk.sbn,
		SourceBlockLength: uint16(blk.k),
		BlockLength:       uint16(blk.k + blk.r),
	}
	if !slot.restored {
		out.Flags |= pkt.FlagRTP
	}
	return out
}

func (r *BlockReader) closeBlock(blk *block) {
	// Every source slot has already been emitted (ownership of its
	// retained slice transferred to the emitted packet) by the time
	// nextEmit reaches k. Repair slices are never emitted, so they always
	// need releasing here. The closed block stays in r.blocks until it
	// slides out of the window, so later packets for its SBN are dropped
	// as late instead of opening a fresh block.
	blk.releaseRepairSlices(r.factory.Pool())
	blk.state = blockClosed
}

func (r *BlockReader) expireOldBlocks() {
	for sbn, blk := range r.blocks {
		if sbnDiff(r.leading, sbn) >= int32(r.windowSize) {
			blk.state = blockExpired
			missing := blk.k - blk.nextEmit
			for i := blk.nextEmit; i < blk.k; i++ {
				if blk.source[i].present {
					missing--
				}
			}
			r.stats.Lost += uint64(missing)
			// Slots before nextEmit already had their retained slice
			// transferred to an emitted packet; only release the ones
			// that never made it out.
			for i := blk.nextEmit; i < blk.k; i++ {
				if blk.source[i].present && !blk.source[i].restored {
					blk.source[i].slice.Release(r.factory.Pool())
				}
			}
			blk.releaseRepairSlices(r.factory.Pool())
			delete(r.blocks, sbn)
		}
	}
}

func (r *BlockReader) rateLimitedDrop(msg string) {
	if r.dropLog.Allow() {
		r.log.Warn().Msg(msg)
	}
}

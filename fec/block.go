// SPDX-License-Identifier: MPL-2.0

package fec

import "github.com/rocwire/rocwire/pkt"

// blockState is the per-block state machine from spec.md §4.2.
type blockState int

const (
	blockOpen blockState = iota
	blockClosed
	blockExpired
)

// sourceSlot tracks what BlockReader knows about one source ESI within
// a block, whether received directly or reconstructed.
type sourceSlot struct {
	present   bool
	restored  bool
	payload   []byte
	slice     pkt.Slice
	streamTs  uint32
	captureTs int64
	marker    bool
	seqnum    uint16
}

// block is the transient per-SBN state described in spec.md §3.
type block struct {
	sbn         uint16
	k, r        int
	payloadSize int

	source       []sourceSlot
	repair       [][]byte  // len r, nil entries missing; aliases repairSlices
	repairSlices []pkt.Slice // retained references backing repair, released on block close/expiry

	receivedSource int
	receivedRepair int
	nextEmit       int
	state          blockState
	unrecoverable  bool
}

func newBlock(sbn uint16, k, r int) *block {
	return &block{
		sbn:          sbn,
		k:            k,
		r:            r,
		source:       make([]sourceSlot, k),
		repair:       make([][]byte, r),
		repairSlices: make([]pkt.Slice, r),
	}
}

// releaseRepairSlices releases every received repair slot's retained
// slice. Repair payloads are never handed to an emitted packet, so unlike
// source slots their ownership never transfers out of the block.
func (b *block) releaseRepairSlices(pool *pkt.Pool) {
	for i, s := range b.repairSlices {
		if !s.IsNil() {
			s.Release(pool)
			b.repairSlices[i] = pkt.Slice{}
		}
	}
}

func (b *block) totalReceived() int { return b.receivedSource + b.receivedRepair }

// interpolate derives a restored packet's stream timestamp and capture
// timestamp by linear interpolation between the nearest received
// neighbors in the same block, per spec.md §9's resolved open question.
func (b *block) interpolate(esi int) (streamTs uint32, captureTs int64) {
	left, right := -1, -1
	for i := esi - 1; i >= 0; i-- {
		if b.source[i].present && !b.source[i].restored {
			left = i
			break
		}
	}
	for i := esi + 1; i < b.k; i++ {
		if b.source[i].present && !b.source[i].restored {
			right = i
			break
		}
	}

	switch {
	case left >= 0 && right >= 0:
		span := right - left
		frac := esi - left
		lts, rts := b.source[left].streamTs, b.source[right].streamTs
		streamTs = lts + uint32(int64(rts-lts)*int64(frac)/int64(span))
		lc, rc := b.source[left].captureTs, b.source[right].captureTs
		if lc != 0 && rc != 0 {
			captureTs = lc + (rc-lc)*int64(frac)/int64(span)
		}
	case left >= 0:
		streamTs = b.source[left].streamTs
		captureTs = b.source[left].captureTs
	case right >= 0:
		streamTs = b.source[right].streamTs
		captureTs = b.source[right].captureTs
	}
	return streamTs, captureTs
}

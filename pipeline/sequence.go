// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"math/rand"
)

const (
	seqMaxMisorder uint16 = 100
	seqMaxDropout  uint16 = 3000
	seqMaxValue    uint16 = 65535
)

var (
	// ErrSequenceBad is returned by SequenceTracker.Update for a sequence
	// number that jumped too far to be ordinary reordering (RFC 3550
	// appendix A.2's "large jump" case); the stream is presumed restarted
	// or corrupt until two consecutive packets confirm the new run.
	ErrSequenceBad = errors.New("pipeline: bad rtp sequence jump")
	// ErrSequenceDuplicate is returned for a sequence number 1 to
	// seqMaxMisorder behind the tracker's high-water mark: a retransmit,
	// a network duplicate or a late, reordered packet. A repeat of the
	// high-water mark itself is accepted by Update.
	ErrSequenceDuplicate = errors.New("pipeline: duplicate rtp sequence")
)

// SequenceTracker assigns monotonic RTP sequence numbers on the send
// side (Next) and validates them against reordering/loss/duplication on
// the receive side (Update), per RFC 3550 appendix A.2. Packetizer uses
// the send half for every outgoing packet; ReceiverSlot uses the
// receive half to decide whether an inbound packet's sequence number is
// plausible before handing it to the depacketizer.
//
// Not safe for concurrent use; callers serialize access the same way
// they serialize the rest of a single stream's send or receive path.
type SequenceTracker struct {
	seqNum  uint16 // highest sequence number sent or accepted
	wrapped uint16 // count of times seqNum has wrapped past 65535
	badSeq  uint16 // candidate restart point while resynchronizing
}

// NewSequenceTracker returns a SequenceTracker seeded with a random
// starting sequence number, as RFC 3550 §8.1 recommends for send-side
// use (picking a predictable starting value would weaken SRTP, were it
// ever layered on top).
func NewSequenceTracker() SequenceTracker {
	t := SequenceTracker{}
	t.Init(uint16(rand.Uint32()))
	return t
}

// Init (re)synchronizes the tracker on seq, discarding any prior state.
func (t *SequenceTracker) Init(seq uint16) {
	t.seqNum = seq
	t.badSeq = seqMaxValue
	t.wrapped = 0
}

// Next returns the next sequence number to stamp on an outgoing packet.
func (t *SequenceTracker) Next() uint16 {
	t.seqNum++
	if t.seqNum == 0 {
		t.wrapped++
	}
	return t.seqNum
}

// Update folds one received sequence number into the tracker. A nil
// return means seq equals the high-water mark or is ahead of it by less
// than seqMaxDropout, and the tracker's high-water mark now reflects it.
// ErrSequenceBad means seq is probably a restarted or corrupt stream;
// two consecutive packets at the same new sequence confirm the restart
// and resynchronize the tracker automatically. ErrSequenceDuplicate
// means seq is a repeat the caller should drop.
func (t *SequenceTracker) Update(seq uint16) error {
	maxSeq := t.seqNum
	udelta := seq - maxSeq

	if udelta < seqMaxDropout {
		if seq < maxSeq {
			t.wrapped++
		}
		t.seqNum = seq
		return nil
	}

	if udelta <= seqMaxValue-seqMaxMisorder {
		if seq == t.badSeq {
			t.Init(seq)
			return nil
		}
		t.badSeq = seq + 1
		return ErrSequenceBad
	}

	return ErrSequenceDuplicate
}

// Extended returns the 32-bit-extended sequence number implied by the
// tracker's current state, suitable for cumulative-loss accounting
// across wraparounds (spec.md §4.6's cumulative-lost field).
func (t *SequenceTracker) Extended() uint64 {
	return uint64(t.seqNum) + (uint64(seqMaxValue)+1)*uint64(t.wrapped)
}

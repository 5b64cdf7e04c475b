// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceTrackerWrapping(t *testing.T) {
	var realSeq uint16 = 1<<16 - 1
	tr := SequenceTracker{seqNum: realSeq}

	realSeq++
	require.NoError(t, tr.Update(realSeq))

	assert.Equal(t, uint16(1), tr.wrapped)
	assert.Equal(t, uint64(1<<16), tr.Extended())
}

func TestSequenceTrackerInOrder(t *testing.T) {
	var tr SequenceTracker
	tr.Init(100)
	for seq := uint16(101); seq <= 110; seq++ {
		require.NoError(t, tr.Update(seq))
	}
	assert.Equal(t, uint64(110), tr.Extended())
}

func TestSequenceTrackerDuplicate(t *testing.T) {
	var tr SequenceTracker
	tr.Init(100)
	require.NoError(t, tr.Update(150))
	// A packet just behind the high-water mark is a near-past repeat,
	// not ordinary reordering.
	require.ErrorIs(t, tr.Update(149), ErrSequenceDuplicate)
}

func TestSequenceTrackerBadJumpThenResync(t *testing.T) {
	var tr SequenceTracker
	tr.Init(100)

	err := tr.Update(40000)
	require.ErrorIs(t, err, ErrSequenceBad)

	// The next packet in the new run confirms the restart and
	// resynchronizes the tracker on it.
	require.NoError(t, tr.Update(40001))
	assert.Equal(t, uint64(40001), tr.Extended())
}

func TestSequenceTrackerNextMonotonic(t *testing.T) {
	var tr SequenceTracker
	tr.Init(0)
	first := tr.Next()
	second := tr.Next()
	assert.Equal(t, first+1, second)
}

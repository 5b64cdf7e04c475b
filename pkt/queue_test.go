// SPDX-License-Identifier: MPL-2.0

package pkt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	a, b, c := &Packet{}, &Packet{}, &Packet{}
	require.True(t, q.TryPush(a))
	require.True(t, q.TryPush(b))
	require.True(t, q.TryPush(c))

	require.Same(t, a, q.TryPop())
	require.Same(t, b, q.TryPop())
	require.Same(t, c, q.TryPop())
	require.Nil(t, q.TryPop())
}

func TestQueueDropsOnOverflow(t *testing.T) {
	q := NewQueue(2) // rounds up to 2
	require.True(t, q.TryPush(&Packet{}))
	require.True(t, q.TryPush(&Packet{}))
	require.False(t, q.TryPush(&Packet{}))
	require.Equal(t, uint64(1), q.Dropped())

	q.TryPop()
	require.True(t, q.TryPush(&Packet{}))
}

func TestQueueRoundsCapacityUpToPowerOfTwo(t *testing.T) {
	q := NewQueue(3)
	require.Equal(t, 4, len(q.buf))
}

// SPDX-License-Identifier: MPL-2.0

package pkt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceReslice(t *testing.T) {
	p := NewPool()
	s := p.Get(256)
	s.Extend(10)
	for i := 0; i < 10; i++ {
		s.Bytes()[i] = byte(i)
	}

	sub := s.Reslice(2, 4)
	require.Equal(t, 4, sub.Len())
	require.Equal(t, []byte{2, 3, 4, 5}, sub.Bytes())

	// Sub-slicing shares the backing array: mutating through one view
	// is visible through the other.
	sub.Bytes()[0] = 99
	require.Equal(t, byte(99), s.Bytes()[2])

	sub.Release(p)
	s.Release(p)
}

func TestSliceExtendWithinCapacity(t *testing.T) {
	p := NewPool()
	s := p.Get(16)
	require.Equal(t, 0, s.Len())
	require.GreaterOrEqual(t, s.Cap(), 16)

	s.Extend(16)
	require.Equal(t, 16, s.Len())
	require.Panics(t, func() { s.Extend(17) })
	s.Release(p)
}

func TestSliceRefcountReturnsToPool(t *testing.T) {
	p := NewPool()
	s := p.Get(128)
	s.Extend(8)
	other := s.Reslice(0, 8)

	// Releasing the original must not free the buffer while other is alive.
	s.Release(p)
	other.Bytes()[0] = 7 // still valid

	other.Release(p)

	reused := p.Get(128)
	require.Equal(t, 0, reused.Len())
	reused.Release(p)
}

func TestSliceNilIsSafe(t *testing.T) {
	var s Slice
	require.True(t, s.IsNil())
	require.Equal(t, 0, s.Len())
	s.Retain()
	s.Release(nil)
}

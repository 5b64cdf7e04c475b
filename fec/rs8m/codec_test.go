// SPDX-License-Identifier: MPL-2.0

package rs8m

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomBlock(k, size int, seed int64) [][]byte {
	rnd := rand.New(rand.NewSource(seed))
	out := make([][]byte, k)
	for i := range out {
		out[i] = make([]byte, size)
		rnd.Read(out[i])
	}
	return out
}

func TestEncodeDecodeNoLoss(t *testing.T) {
	c := New()
	source := randomBlock(10, 32, 1)
	repair, err := c.Encode(source, 4)
	require.NoError(t, err)
	require.Len(t, repair, 4)

	recovered, ok, err := c.Decode(source, repair)
	require.NoError(t, err)
	require.False(t, ok) // nothing missing
	require.Nil(t, recovered)
}

func TestDecodeRecoversUpToRLosses(t *testing.T) {
	c := New()
	k, r := 12, 5
	source := randomBlock(k, 64, 2)
	repair, err := c.Encode(source, r)
	require.NoError(t, err)

	lossy := make([][]byte, k)
	copy(lossy, source)
	lostIdx := []int{0, 3, 7, 11, 5}
	for _, idx := range lostIdx {
		lossy[idx] = nil
	}

	recovered, ok, err := c.Decode(lossy, repair)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, recovered, len(lostIdx))
	for _, idx := range lostIdx {
		require.Equal(t, source[idx], recovered[idx])
	}
}

func TestDecodeInsufficientRepairsReturnsNotOK(t *testing.T) {
	c := New()
	k, r := 8, 2
	source := randomBlock(k, 16, 3)
	repair, err := c.Encode(source, r)
	require.NoError(t, err)

	lossy := make([][]byte, k)
	copy(lossy, source)
	lossy[0] = nil
	lossy[1] = nil
	lossy[2] = nil // 3 missing, only 2 repair symbols available

	recovered, ok, err := c.Decode(lossy, repair)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, recovered)
}

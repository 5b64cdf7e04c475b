// SPDX-License-Identifier: MPL-2.0

package ldpcstaircase

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

func TestEncodeDecodeSingleLoss(t *testing.T) {
	c := New(4)
	k, r := 16, 6
	source := randomBlock(k, 32, 1)
	repair, err := c.Encode(source, r)
	require.NoError(t, err)

	lossy := make([][]byte, k)
	copy(lossy, source)
	lossy[5] = nil

	recovered, ok, err := c.Decode(lossy, repair)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, source[5], recovered[5])
}

func TestDecodeNoProgressWhenUnsolvable(t *testing.T) {
	c := New(4)
	k, r := 16, 6
	source := randomBlock(k, 32, 2)
	// No repair symbols received at all: nothing can be solved.
	lossy := make([][]byte, k)
	copy(lossy, source)
	lossy[0] = nil

	repair := make([][]byte, r)
	recovered, ok, err := c.Decode(lossy, repair)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, recovered)
}

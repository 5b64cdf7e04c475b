// SPDX-License-Identifier: MPL-2.0

package rs8m

import "errors"

// MaxBlockLength is the largest k+r this codec supports: GF(2^8) has 255
// nonzero elements, one per distinct evaluation point.
const MaxBlockLength = 255

var (
	ErrEmptyBlock     = errors.New("rs8m: empty source block")
	ErrPayloadMismatch = errors.New("rs8m: payload size mismatch")
)

// Codec implements fec.BlockEncoder and fec.BlockDecoder.
type Codec struct{}

// New constructs an RS8M Codec. It takes no configuration: the Cauchy
// evaluation points are derived purely from k and r at call time.
func New() *Codec { return &Codec{} }

func (c *Codec) MaxBlockLength() int { return MaxBlockLength }

// cauchyCoeff returns the Cauchy matrix entry for repair evaluation
// point x and source evaluation point y. Source points are y_i = i,
// repair points are x_j = k+j, so x and y are always distinct field
// elements and the entry is always defined.
func cauchyCoeff(x, y byte) byte {
	return gfInv(x ^ y)
}

func (c *Codec) Encode(source [][]byte, r int) ([][]byte, error) {
	k := len(source)
	if k == 0 {
		return nil, ErrEmptyBlock
	}
	payloadLen := len(source[0])
	for _, s := range source {
		if len(s) != payloadLen {
			return nil, ErrPayloadMismatch
		}
	}
	if k+r > MaxBlockLength {
		return nil, errors.New("rs8m: k+r exceeds max block length")
	}

	repair := make([][]byte, r)
	for j := 0; j < r; j++ {
		x := byte(k + j)
		out := make([]byte, payloadLen)
		for i := 0; i < k; i++ {
			coeff := cauchyCoeff(x, byte(i))
			if coeff == 0 {
				continue
			}
			src := source[i]
			for b := 0; b < payloadLen; b++ {
				out[b] ^= gfMul(coeff, src[b])
			}
		}
		repair[j] = out
	}
	return repair, nil
}

func (c *Codec) Decode(sourceSlots, repairSlots [][]byte) (map[int][]byte, bool, error) {
	k := len(sourceSlots)
	r := len(repairSlots)

	var missing []int
	var payloadLen int
	for i, s := range sourceSlots {
		if s == nil {
			missing = append(missing, i)
		} else if payloadLen == 0 {
			payloadLen = len(s)
		}
	}
	if len(missing) == 0 {
		return nil, false, nil
	}

	var present []int
	for j, s := range repairSlots {
		if s != nil {
			if payloadLen == 0 {
				payloadLen = len(s)
			}
			present = append(present, j)
		}
	}
	if len(present) < len(missing) {
		// Not enough symbols yet; caller retries after the next packet.
		return nil, false, nil
	}
	used := present[:len(missing)]
	e := len(missing)

	m := newMatrix(e)
	rhs := make([][]byte, e)
	for t, j := range used {
		x := byte(k + j)
		for s, i := range missing {
			m.set(t, s, cauchyCoeff(x, byte(i)))
		}
		row := make([]byte, payloadLen)
		copy(row, repairSlots[j])
		for i := 0; i < k; i++ {
			if sourceSlots[i] == nil {
				continue
			}
			coeff := cauchyCoeff(x, byte(i))
			if coeff == 0 {
				continue
			}
			src := sourceSlots[i]
			for b := 0; b < payloadLen; b++ {
				row[b] ^= gfMul(coeff, src[b])
			}
		}
		rhs[t] = row
	}

	inv, err := m.invert()
	if err != nil {
		return nil, false, err
	}

	recovered := make(map[int][]byte, e)
	for s, i := range missing {
		out := make([]byte, payloadLen)
		for t := 0; t < e; t++ {
			coeff := inv.at(s, t)
			if coeff == 0 {
				continue
			}
			row := rhs[t]
			for b := 0; b < payloadLen; b++ {
				out[b] ^= gfMul(coeff, row[b])
			}
		}
		recovered[i] = out
	}
	return recovered, true, nil
}

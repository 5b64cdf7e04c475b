// SPDX-License-Identifier: MPL-2.0

// Package ldpcstaircase implements a simplified staircase XOR parity
// code, standing in for the "LDPC_Staircase" scheme named in spec.md §6.
// Unlike rs8m's optimal Cauchy-matrix code, this is a non-optimal code:
// k symbols are not always sufficient, and decoding is retried as more
// packets arrive via iterative peeling (spec.md §4.2 "if decoding fails,
// decoder is retried after each new packet arrives").
package ldpcstaircase

import "errors"

var ErrEmptyBlock = errors.New("ldpcstaircase: empty source block")

// Codec implements fec.BlockEncoder and fec.BlockDecoder.
type Codec struct {
	// N1 is the staircase window length: each repair symbol is the XOR
	// of N1 consecutive (mod k) source symbols, per spec.md §6's
	// FecCodecConfig.LDPCN1.
	N1 int
}

// New constructs a staircase codec with the given window length.
func New(n1 int) *Codec {
	if n1 <= 0 {
		n1 = 7
	}
	return &Codec{N1: n1}
}

func (c *Codec) MaxBlockLength() int { return 1 << 16 }

// window returns the source indices XORed into repair symbol j, given
// k source symbols: a staircase of N1-wide windows (wrapping mod k)
// advancing by k/r (at least 1) per repair symbol. Whether every source
// symbol is covered, and by how many equations, depends on N1, k and r;
// e.g. k=16, r=6, N1=4 leaves symbols 14 and 15 in no window.
func (c *Codec) window(j, k, r int) []int {
	n1 := c.N1
	if n1 > k {
		n1 = k
	}
	step := k / r
	if step == 0 {
		step = 1
	}
	start := (j * step) % k
	out := make([]int, n1)
	for t := 0; t < n1; t++ {
		out[t] = (start + t) % k
	}
	return out
}

func (c *Codec) Encode(source [][]byte, r int) ([][]byte, error) {
	k := len(source)
	if k == 0 {
		return nil, ErrEmptyBlock
	}
	payloadLen := len(source[0])
	repair := make([][]byte, r)
	for j := 0; j < r; j++ {
		out := make([]byte, payloadLen)
		for _, i := range c.window(j, k, r) {
			src := source[i]
			for b := 0; b < payloadLen; b++ {
				out[b] ^= src[b]
			}
		}
		repair[j] = out
	}
	return repair, nil
}

// equation is one XOR constraint: XOR of members == value.
type equation struct {
	members []int
	value   []byte
}

func (c *Codec) Decode(sourceSlots, repairSlots [][]byte) (map[int][]byte, bool, error) {
	k := len(sourceSlots)
	r := len(repairSlots)

	known := make([][]byte, k)
	copy(known, sourceSlots)

	var anyMissingBefore bool
	for _, s := range known {
		if s == nil {
			anyMissingBefore = true
			break
		}
	}
	if !anyMissingBefore {
		return nil, false, nil
	}

	var eqs []equation
	for j := 0; j < r; j++ {
		if repairSlots[j] == nil {
			continue
		}
		eqs = append(eqs, equation{members: c.window(j, k, r), value: repairSlots[j]})
	}

	recovered := make(map[int][]byte)
	progress := true
	for progress {
		progress = false
		for _, eq := range eqs {
			unknownIdx := -1
			unknownCount := 0
			for _, m := range eq.members {
				if known[m] == nil {
					unknownCount++
					unknownIdx = m
				}
			}
			if unknownCount != 1 {
				continue
			}
			payloadLen := len(eq.value)
			out := make([]byte, payloadLen)
			copy(out, eq.value)
			for _, m := range eq.members {
				if m == unknownIdx {
					continue
				}
				src := known[m]
				for b := 0; b < payloadLen; b++ {
					out[b] ^= src[b]
				}
			}
			known[unknownIdx] = out
			recovered[unknownIdx] = out
			progress = true
		}
	}

	if len(recovered) == 0 {
		return nil, false, nil
	}
	return recovered, true, nil
}

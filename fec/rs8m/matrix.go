// SPDX-License-Identifier: MPL-2.0

package rs8m

import "errors"

var errSingular = errors.New("rs8m: matrix not invertible")

// matrix is a row-major square matrix over GF(2^8), sized for the small
// (<= r x r) systems the decoder solves per erasure.
type matrix struct {
	n    int
	data []byte // n*n
}

func newMatrix(n int) *matrix {
	return &matrix{n: n, data: make([]byte, n*n)}
}

func (m *matrix) at(r, c int) byte      { return m.data[r*m.n+c] }
func (m *matrix) set(r, c int, v byte)  { m.data[r*m.n+c] = v }

// invert computes the inverse of m via Gauss-Jordan elimination over
// GF(2^8), returning a new matrix. m is not modified.
func (m *matrix) invert() (*matrix, error) {
	n := m.n
	aug := newMatrix(n)
	copy(aug.data, m.data)
	inv := newMatrix(n)
	for i := 0; i < n; i++ {
		inv.set(i, i, 1)
	}

	for col := 0; col < n; col++ {
		// Find pivot.
		pivot := -1
		for row := col; row < n; row++ {
			if aug.at(row, col) != 0 {
				pivot = row
				break
			}
		}
		if pivot < 0 {
			return nil, errSingular
		}
		if pivot != col {
			swapRows(aug, col, pivot)
			swapRows(inv, col, pivot)
		}

		pv := aug.at(col, col)
		pvInv := gfInv(pv)
		scaleRow(aug, col, pvInv)
		scaleRow(inv, col, pvInv)

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := aug.at(row, col)
			if factor == 0 {
				continue
			}
			addScaledRow(aug, row, col, factor)
			addScaledRow(inv, row, col, factor)
		}
	}
	return inv, nil
}

func swapRows(m *matrix, a, b int) {
	for c := 0; c < m.n; c++ {
		m.data[a*m.n+c], m.data[b*m.n+c] = m.data[b*m.n+c], m.data[a*m.n+c]
	}
}

func scaleRow(m *matrix, row int, factor byte) {
	for c := 0; c < m.n; c++ {
		m.data[row*m.n+c] = gfMul(m.data[row*m.n+c], factor)
	}
}

// addScaledRow does row `dst` += factor * row `src` (GF addition is XOR).
func addScaledRow(m *matrix, dst, src int, factor byte) {
	for c := 0; c < m.n; c++ {
		m.data[dst*m.n+c] ^= gfMul(m.data[src*m.n+c], factor)
	}
}

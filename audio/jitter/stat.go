// SPDX-License-Identifier: MPL-2.0

package jitter

import "sort"

// movAggregate is a fixed-length sliding window over float64 samples that
// reports both the moving average and the moving maximum in O(1)
// amortized time per sample. Grounded on the moving-average/moving-max
// pair `roc_stat::MovAggregate` provides to jitter_meter.cpp; no
// third-party sliding-window statistics library appears anywhere in the
// retrieval pack, so this is a from-scratch, stdlib-only implementation
// (see DESIGN.md).
type movAggregate struct {
	window []float64
	pos    int
	filled int

	sum float64

	// maxDeque holds window-relative indices of a monotonically
	// decreasing sequence of values, the classic sliding-window-maximum
	// structure; front is always the current window maximum.
	maxDeque []int
	seq      int // monotonically increasing sample counter, for deque eviction
}

func newMovAggregate(length int) *movAggregate {
	if length < 1 {
		length = 1
	}
	return &movAggregate{window: make([]float64, length)}
}

func (a *movAggregate) add(v float64) {
	n := len(a.window)
	if a.filled == n {
		a.sum -= a.window[a.pos]
	} else {
		a.filled++
	}
	a.window[a.pos] = v
	a.sum += v

	// Evict deque entries outside the window and smaller than v.
	oldest := a.seq - a.filled + 1
	for len(a.maxDeque) > 0 && a.maxDeque[0] < oldest {
		a.maxDeque = a.maxDeque[1:]
	}
	for len(a.maxDeque) > 0 && a.window[a.maxDeque[len(a.maxDeque)-1]%n] <= v {
		a.maxDeque = a.maxDeque[:len(a.maxDeque)-1]
	}
	a.maxDeque = append(a.maxDeque, a.seq)

	a.pos = (a.pos + 1) % n
	a.seq++
}

func (a *movAggregate) movAvg() float64 {
	if a.filled == 0 {
		return 0
	}
	return a.sum / float64(a.filled)
}

func (a *movAggregate) movMax() float64 {
	if len(a.maxDeque) == 0 {
		return 0
	}
	return a.window[a.maxDeque[0]%len(a.window)]
}

// movQuantile is a fixed-length sliding window reporting the moving
// value at a fixed quantile (nearest-rank method). Grounded on
// `roc_stat::MovQuantile`; like movAggregate, no suitable third-party
// order-statistics-over-a-sliding-window library exists in the pack, so
// this keeps a sorted shadow copy of the window (stdlib `sort` only).
type movQuantile struct {
	window   []float64
	pos      int
	filled   int
	quantile float64

	sorted []float64
}

func newMovQuantile(length int, quantile float64) *movQuantile {
	if length < 1 {
		length = 1
	}
	return &movQuantile{
		window:   make([]float64, length),
		quantile: quantile,
		sorted:   make([]float64, 0, length),
	}
}

func (q *movQuantile) add(v float64) {
	n := len(q.window)
	if q.filled == n {
		old := q.window[q.pos]
		q.sorted = removeSorted(q.sorted, old)
	} else {
		q.filled++
	}
	q.window[q.pos] = v
	q.sorted = insertSorted(q.sorted, v)
	q.pos = (q.pos + 1) % n
}

func (q *movQuantile) movQuantileValue() float64 {
	if q.filled == 0 {
		return 0
	}
	idx := int(q.quantile * float64(q.filled-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= q.filled {
		idx = q.filled - 1
	}
	return q.sorted[idx]
}

func insertSorted(s []float64, v float64) []float64 {
	i := sort.SearchFloat64s(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeSorted(s []float64, v float64) []float64 {
	i := sort.SearchFloat64s(s, v)
	if i < len(s) && s[i] == v {
		return append(s[:i], s[i+1:]...)
	}
	return s
}

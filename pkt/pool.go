// SPDX-License-Identifier: MPL-2.0

package pkt

import "sync"

// sizeClasses buckets pooled buffers by capacity so that small FEC
// headers/footers and MTU-size payloads don't compete for the same
// sync.Pool bucket. Grounded on the teacher's rtpBufPool (a single
// sync.Pool of media.RTPBufSize-sized buffers); this generalizes it to
// the several distinct allocation sizes a packet pipeline actually needs.
var sizeClasses = []int{128, 256, 1500, 4096}

// Pool is a process-wide, internally synchronized arena of reusable
// byte buffers, grounded on spec.md §9's "arena to avoid general-purpose
// allocator churn on the audio hot path".
type Pool struct {
	buckets []sync.Pool
}

// NewPool constructs a Pool. A Pool is typically constructed once at
// process start and passed by reference into factories, per spec.md §9's
// "Global state" design note.
func NewPool() *Pool {
	p := &Pool{buckets: make([]sync.Pool, len(sizeClasses))}
	for i, sz := range sizeClasses {
		sz := sz
		p.buckets[i].New = func() any { return newBuffer(sz) }
	}
	return p
}

func (p *Pool) bucketFor(capacity int) int {
	for i, sz := range sizeClasses {
		if capacity <= sz {
			return i
		}
	}
	return -1
}

// Get returns a Slice of length 0 and at least the requested capacity.
// Capacities larger than the largest size class allocate a one-off
// buffer that is not returned to the pool.
func (p *Pool) Get(capacity int) Slice {
	idx := p.bucketFor(capacity)
	if idx < 0 {
		return sliceFromBuffer(newBuffer(capacity))
	}
	b := p.buckets[idx].Get().(*buffer)
	b.refs = 1
	return sliceFromBuffer(b)
}

func (p *Pool) put(b *buffer) {
	idx := p.bucketFor(len(b.data))
	if idx < 0 {
		return
	}
	p.buckets[idx].Put(b)
}

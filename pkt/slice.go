// SPDX-License-Identifier: MPL-2.0

// Package pkt implements the reference-counted byte-slice, pooled packet
// and lock-free queue layer that the FEC, RTCP and pipeline packages build
// on. It has no knowledge of any particular wire format.
package pkt

import "sync/atomic"

// buffer is the shared backing array a Slice is a view over. It is never
// reallocated once created; Extend only ever grows length up to cap.
type buffer struct {
	data []byte
	refs int32
}

func newBuffer(capacity int) *buffer {
	return &buffer{data: make([]byte, capacity), refs: 1}
}

func (b *buffer) retain() {
	atomic.AddInt32(&b.refs, 1)
}

// release returns true if this was the last reference.
func (b *buffer) release() bool {
	return atomic.AddInt32(&b.refs, -1) == 0
}

// Slice is a (buffer, offset, length) view with O(1) sub-slicing and
// shared ownership via reference counting. The zero Slice is empty and
// safe to use (Retain/Release on it are no-ops).
type Slice struct {
	buf *buffer
	off int
	ln  int
}

// sliceFromBuffer wraps the whole buffer as a Slice of length 0.
func sliceFromBuffer(b *buffer) Slice {
	return Slice{buf: b, off: 0, ln: 0}
}

// IsNil reports whether this Slice does not reference any buffer.
func (s Slice) IsNil() bool { return s.buf == nil }

// Len returns the number of valid bytes in the slice.
func (s Slice) Len() int { return s.ln }

// Cap returns the remaining capacity from the slice's offset to the end
// of the underlying buffer.
func (s Slice) Cap() int {
	if s.buf == nil {
		return 0
	}
	return len(s.buf.data) - s.off
}

// Bytes returns the valid byte range as a Go slice. The returned slice
// aliases the shared buffer and must not be retained past Release.
func (s Slice) Bytes() []byte {
	if s.buf == nil {
		return nil
	}
	return s.buf.data[s.off : s.off+s.ln]
}

// Reslice returns a sub-view [from, from+length) of the valid range,
// sharing ownership of the same underlying buffer. O(1), no copy.
func (s Slice) Reslice(from, length int) Slice {
	if from < 0 || length < 0 || from+length > s.ln {
		panic("pkt: Slice.Reslice out of range")
	}
	if s.buf != nil {
		s.buf.retain()
	}
	return Slice{buf: s.buf, off: s.off + from, ln: length}
}

// Extend grows the valid length to n, which must not exceed Cap(). The
// underlying buffer is never reallocated; bytes beyond the previous
// length are left as whatever the buffer previously held (callers must
// fill them before Compose).
func (s *Slice) Extend(n int) {
	if n < 0 || s.off+n > len(s.buf.data) {
		panic("pkt: Slice.Extend exceeds capacity")
	}
	s.ln = n
}

// Retain increments the shared reference count. Every Retain (including
// the implicit one from Reslice) must be matched by a Release.
func (s Slice) Retain() {
	if s.buf != nil {
		s.buf.retain()
	}
}

// Release decrements the shared reference count, returning the buffer to
// its pool when it reaches zero. Safe to call on a nil Slice.
func (s Slice) Release(p *Pool) {
	if s.buf == nil {
		return
	}
	if s.buf.release() {
		p.put(s.buf)
	}
}

// SPDX-License-Identifier: MPL-2.0

package pkt

import "sync"

// Factory is a pool-allocated source of *Packet objects, mirroring the
// teacher's use of sync.Pool for hot-path allocation (spec.md §3
// "pool-allocated record").
type Factory struct {
	bufs *Pool
	pool sync.Pool
}

// NewFactory constructs a Factory backed by the given buffer Pool. A
// single Pool/Factory pair is normally shared by a whole sender or
// receiver slot.
func NewFactory(bufs *Pool) *Factory {
	f := &Factory{bufs: bufs}
	f.pool.New = func() any { return &Packet{} }
	return f
}

// New allocates a Packet with flags FlagPrepared and a Buffer of the
// requested capacity. The caller owns the Packet exclusively until it
// calls Release or hands it to a downstream writer.
func (f *Factory) New(bufferCapacity int) *Packet {
	p := f.pool.Get().(*Packet)
	p.reset()
	p.Flags = FlagPrepared
	p.Buffer = f.bufs.Get(bufferCapacity)
	return p
}

// Release returns a Packet and its buffer to their respective pools.
// Callers must not touch the Packet afterward.
func (f *Factory) Release(p *Packet) {
	p.Buffer.Release(f.bufs)
	if p.RTP != nil {
		p.RTP.Payload.Release(f.bufs)
	}
	if p.FEC != nil {
		p.FEC.PayloadID.Release(f.bufs)
		p.FEC.Payload.Release(f.bufs)
	}
	if p.RTCP != nil {
		p.RTCP.Payload.Release(f.bufs)
	}
	p.reset()
	f.pool.Put(p)
}

// Pool exposes the underlying buffer pool, e.g. for code composing
// sub-slices directly (FEC repair payload construction).
func (f *Factory) Pool() *Pool { return f.bufs }

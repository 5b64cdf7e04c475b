// SPDX-License-Identifier: MPL-2.0

package pipeline

import "github.com/rocwire/rocwire/pkt"

// Router is the sender slot's packet fan-out stage (spec.md §4.8):
// "dispatches source packets to source endpoint, repair to repair
// endpoint". It implements fec.PacketWriter, so a BlockWriter (or, with
// no FEC configured, the packetizer directly) can write straight into
// it.
type Router struct {
	Source Endpoint
	Repair *Endpoint // nil if this slot carries no FEC repair stream
}

// WritePacket implements fec.PacketWriter/PacketWriter.
func (r *Router) WritePacket(p *pkt.Packet) error {
	if p.IsRepair() {
		if r.Repair == nil {
			return nil
		}
		return r.Repair.Writer.WritePacket(p)
	}
	return r.Source.Writer.WritePacket(p)
}

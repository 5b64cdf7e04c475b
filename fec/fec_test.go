// SPDX-License-Identifier: MPL-2.0

package fec

import (
	"testing"

	"github.com/rocwire/rocwire/config"
	"github.com/rocwire/rocwire/pkt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// collector is a trivial PacketWriter that just appends packets, used to
// stand in for "the downstream" in both writer and reader tests.
type collector struct {
	packets []*pkt.Packet
}

func (c *collector) WritePacket(p *pkt.Packet) error {
	c.packets = append(c.packets, p)
	return nil
}

// newSourcePacket builds a Prepared, not-yet-Composed source packet with
// a payload and a reserved 6-byte FEC footer, as fec.BlockWriter expects
// its input (spec.md §4.1).
func newSourcePacket(factory *pkt.Factory, payload []byte, streamTs uint32) *pkt.Packet {
	p := factory.New(len(payload) + 6)
	p.Flags = pkt.FlagPrepared | pkt.FlagAudio
	p.Buffer.Extend(len(payload) + 6)
	dataSlice := p.Buffer.Reslice(0, len(payload))
	copy(dataSlice.Bytes(), payload)
	footerSlice := p.Buffer.Reslice(len(payload), 6)
	p.RTP = &pkt.RTP{StreamTimestamp: streamTs, Payload: dataSlice}
	p.FEC = &pkt.FEC{Scheme: pkt.FECSchemeRS8M, PayloadID: footerSlice}
	return p
}

func newRS8MCodecForTest(t *testing.T) Codec {
	t.Helper()
	cm := NewCodecMap()
	cfg := config.FecCodecConfig{Scheme: config.FECSchemeRS8M}
	require.NoError(t, cfg.DeduceDefaults())
	codec, err := cm.New(cfg)
	require.NoError(t, err)
	return codec
}

func TestBlockWriterReaderNoLoss(t *testing.T) {
	codec := newRS8MCodecForTest(t)
	factory := pkt.NewFactory(pkt.NewPool())
	collected := &collector{}
	reader := NewBlockReader(SchemeRS8M, codec, factory, collected, 16, zerolog.Nop())
	writer, err := NewBlockWriter(SchemeRS8M, codec, nil, factory, reader, 4, 2, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		payload := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3)}
		p := newSourcePacket(factory, payload, uint32(i*160))
		require.NoError(t, writer.Write(p))
	}

	require.Len(t, collected.packets, 12)
	for i, p := range collected.packets {
		require.True(t, p.Flags.Has(pkt.FlagComposed))
		require.False(t, p.Flags.Has(pkt.FlagRestored))
		require.Equal(t, byte(i), p.RTP.Payload.Bytes()[0])
	}
}

// dropEveryThird drops every 3rd source packet before forwarding to the
// reader, simulating lossy transport while always delivering repairs; it
// exercises the "k of k+r arrive => full recovery" property.
type dropEveryThird struct {
	reader *BlockReader
	n      int
}

func (d *dropEveryThird) WritePacket(p *pkt.Packet) error {
	isSource := int(p.FEC.EncodingSymbolID) < int(p.FEC.SourceBlockLength)
	if isSource {
		d.n++
		if d.n%3 == 0 {
			return nil // dropped in transit
		}
	}
	return d.reader.Write(p)
}

func TestBlockWriterReaderRecoversLoss(t *testing.T) {
	codec := newRS8MCodecForTest(t)
	factory := pkt.NewFactory(pkt.NewPool())
	collected := &collector{}
	reader := NewBlockReader(SchemeRS8M, codec, factory, collected, 16, zerolog.Nop())
	lossy := &dropEveryThird{reader: reader}
	writer, err := NewBlockWriter(SchemeRS8M, codec, nil, factory, lossy, 10, 4, zerolog.Nop())
	require.NoError(t, err)

	const n = 30
	for i := 0; i < n; i++ {
		payload := []byte{byte(i), byte(i * 2)}
		p := newSourcePacket(factory, payload, uint32(i*160))
		require.NoError(t, writer.Write(p))
	}

	require.Len(t, collected.packets, n)
	for i, p := range collected.packets {
		require.Equal(t, byte(i), p.RTP.Payload.Bytes()[0], "packet %d", i)
	}
	require.Equal(t, uint64(0), reader.Stats().Lost)
}

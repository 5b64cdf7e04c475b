// SPDX-License-Identifier: MPL-2.0

package wire

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/require"
)

func TestBuilderTraverserSRSDESRoundTrip(t *testing.T) {
	dst := make([]byte, 1492)
	b := NewBuilder(dst)

	b.BeginSR(rtcp.SenderReport{
		SSRC:        111,
		NTPTime:     11,
		RTPTime:     12,
		PacketCount: 13,
		OctetCount:  14,
	})
	b.AddSRReport(rtcp.ReceptionReport{
		SSRC:               222,
		FractionLost:       32,
		TotalLost:          21,
		LastSequenceNumber: 22,
		Jitter:             23,
		LastSenderReport:   0x2400000,
		Delay:              0x2500000,
	})
	b.EndSR()

	b.BeginSDES()
	b.BeginSDESChunk(111)
	b.AddSDESItem(rtcp.SourceDescriptionItem{Type: rtcp.SDESCNAME, Text: "test@example.org"})
	b.EndSDESChunk()
	b.EndSDES()

	out := b.Bytes()
	require.True(t, b.OK())
	require.NotEmpty(t, out)
	require.Zero(t, len(out)%4, "compound packet must be 4-byte aligned")

	trav := NewTraverser(out)
	require.True(t, trav.Validate())

	packets, err := trav.Packets()
	require.NoError(t, err)
	require.Len(t, packets, 2)

	sr, ok := packets[0].(*rtcp.SenderReport)
	require.True(t, ok, "first packet must be SR")
	require.EqualValues(t, 111, sr.SSRC)
	require.EqualValues(t, 11, sr.NTPTime)
	require.Len(t, sr.Reports, 1)
	require.EqualValues(t, 222, sr.Reports[0].SSRC)

	sdes, ok := packets[1].(*rtcp.SourceDescription)
	require.True(t, ok, "second packet must be SDES")
	require.Len(t, sdes.Chunks, 1)
	require.Equal(t, "test@example.org", sdes.Chunks[0].Items[0].Text)
}

func TestBuilderTraverserRRXRBye(t *testing.T) {
	dst := make([]byte, 1492)
	b := NewBuilder(dst)

	b.BeginRR(rtcp.ReceiverReport{SSRC: 500})
	b.AddRRReport(rtcp.ReceptionReport{SSRC: 501, FractionLost: 10})
	b.EndRR()

	b.BeginXR(500)
	b.AddXRRRTR(RRTRBlock{NTPSeconds: 1000, NTPFraction: 2000})
	b.BeginXRDLRR()
	b.AddXRDLRRReport(DLRRReport{SSRC: 501, LastRR: 42, DelaySinceLastRR: 7})
	b.EndXRDLRR()
	b.AddXRDelayMetrics(DelayMetricsBlock{SSRC: 500, NiqLatencyNS: 20_000_000, E2ELatencyNS: 80_000_000})
	b.EndXR()

	b.BeginSDES()
	b.BeginSDESChunk(500)
	b.AddSDESItem(rtcp.SourceDescriptionItem{Type: rtcp.SDESCNAME, Text: "sender@example.org"})
	b.EndSDESChunk()
	b.EndSDES()

	b.BeginBYE()
	b.AddBYESSRC(500)
	b.AddBYEReason("shutting down")
	b.EndBYE()

	out := b.Bytes()
	require.True(t, b.OK())

	trav := NewTraverser(out)
	require.True(t, trav.Validate())
	packets, err := trav.Packets()
	require.NoError(t, err)
	require.Len(t, packets, 4)

	rr, ok := packets[0].(*rtcp.ReceiverReport)
	require.True(t, ok)
	require.EqualValues(t, 500, rr.SSRC)

	xr, ok := packets[1].(*XRPacket)
	require.True(t, ok, "second packet must be XR")
	require.EqualValues(t, 500, xr.SenderSSRC)
	require.Len(t, xr.Blocks, 3)

	rrtr, ok := xr.Blocks[0].(RRTRBlock)
	require.True(t, ok)
	require.EqualValues(t, 1000, rrtr.NTPSeconds)

	dlrr, ok := xr.Blocks[1].(DLRRBlock)
	require.True(t, ok)
	require.Len(t, dlrr.Reports, 1)
	require.EqualValues(t, 501, dlrr.Reports[0].SSRC)

	delay, ok := xr.Blocks[2].(DelayMetricsBlock)
	require.True(t, ok)
	require.EqualValues(t, 20_000_000, delay.NiqLatencyNS)

	sdes, ok := packets[2].(*rtcp.SourceDescription)
	require.True(t, ok)
	require.Equal(t, "sender@example.org", sdes.Chunks[0].Items[0].Text)

	bye, ok := packets[3].(*rtcp.Goodbye)
	require.True(t, ok)
	require.Equal(t, []uint32{500}, bye.Sources)
	require.Equal(t, "shutting down", bye.Reason)
}

func TestBuilderRejectsOutOfOrderCalls(t *testing.T) {
	defer func() {
		require.NotNil(t, recover(), "AddRRReport before BeginRR must panic")
	}()
	b := NewBuilder(make([]byte, 1024))
	b.AddRRReport(rtcp.ReceptionReport{SSRC: 1})
}

func TestBuilderRejectsSDESChunkWithoutCNAME(t *testing.T) {
	defer func() {
		require.NotNil(t, recover(), "SDES chunk without CNAME must panic on EndSDESChunk")
	}()
	b := NewBuilder(make([]byte, 1024))
	b.BeginRR(rtcp.ReceiverReport{SSRC: 1})
	b.EndRR()
	b.BeginSDES()
	b.BeginSDESChunk(1)
	b.EndSDESChunk()
}

func TestBuilderNotOKWhenBufferTooSmall(t *testing.T) {
	b := NewBuilder(make([]byte, 4))
	b.BeginRR(rtcp.ReceiverReport{SSRC: 1})
	b.EndRR()
	out := b.Bytes()
	require.False(t, b.OK())
	require.Nil(t, out)
}

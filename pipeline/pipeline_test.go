// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"testing"
	"time"

	"github.com/rocwire/rocwire/config"
	"github.com/rocwire/rocwire/fec"
	"github.com/rocwire/rocwire/pkt"
	"github.com/rocwire/rocwire/rtcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestFactory() *pkt.Factory { return pkt.NewFactory(pkt.NewPool()) }

func newRS8MCodec(t *testing.T) fec.Codec {
	t.Helper()
	cm := fec.NewCodecMap()
	cfg := config.FecCodecConfig{Scheme: config.FECSchemeRS8M}
	require.NoError(t, cfg.DeduceDefaults())
	codec, err := cm.New(cfg)
	require.NoError(t, err)
	return codec
}

// constFrame builds an n-sample-per-channel frame whose every sample
// (across all channels) carries the same value, scaled to stay well
// inside L16's representable range.
func constFrame(value int, channels, samplesPerChannel int) Frame {
	samples := make([]float32, samplesPerChannel*channels)
	v := float32(value%1000) / 1000
	for i := range samples {
		samples[i] = v
	}
	return Frame{Samples: samples, Duration: 20 * time.Millisecond}
}

// queueWriter adapts a pkt.Queue to PacketWriter, standing in for the
// network boundary between a sender's Router and a receiver's inbound
// demux (spec.md §5).
type queueWriter struct{ q *pkt.Queue }

func (w *queueWriter) WritePacket(p *pkt.Packet) error {
	w.q.TryPush(p)
	return nil
}

// TestPipelineNoLossSourceOnly reproduces spec.md §8 scenario 1: no loss,
// no FEC, every source packet arrives and decodes in order.
func TestPipelineNoLossSourceOnly(t *testing.T) {
	factory := newTestFactory()
	wireSpec := SampleSpec{SampleRate: 8000, Channels: 2}
	samplesPerFrame := wireSpec.SamplesPerFrame(20 * time.Millisecond)

	q := pkt.NewQueue(64)
	router := &Router{Source: Endpoint{Interface: AudioSource, Protocol: ProtoRTP, Writer: &queueWriter{q: q}}}
	pz := NewPacketizer(factory, wireSpec, 98, 0xA1B2C3D4, fec.SchemeNone)

	const n = 25
	for i := 0; i < n; i++ {
		p, err := pz.Packetize(constFrame(i, wireSpec.Channels, samplesPerFrame))
		require.NoError(t, err)
		require.NoError(t, router.WritePacket(p))
	}

	dz := NewDepacketizer(wireSpec)
	var got []Frame
	for p := q.TryPop(); p != nil; p = q.TryPop() {
		got = append(got, dz.Depacketize(p))
	}

	require.Len(t, got, n)
	for i, f := range got {
		require.True(t, f.Flags.Has(FrameHasSignal))
		want := float32(i%1000) / 1000
		for _, s := range f.Samples {
			require.InDelta(t, want, s, 1.0/32768)
		}
	}
}

// lossyForwarder drops every 5th source packet (20% loss) before handing
// everything else to a fec.BlockReader, exercising spec.md §8 scenario
// 2's "20% loss, RS(m=8) recovers it all" property.
type lossyForwarder struct {
	reader    *fec.BlockReader
	seen      int
	dropEvery int
}

func (l *lossyForwarder) WritePacket(p *pkt.Packet) error {
	if !p.IsRepair() {
		l.seen++
		if l.dropEvery > 0 && l.seen%l.dropEvery == 0 {
			return nil
		}
	}
	return l.reader.Write(p)
}

func TestPipelineReedSolomonRecoversLoss(t *testing.T) {
	factory := newTestFactory()
	wireSpec := SampleSpec{SampleRate: 8000, Channels: 2}
	samplesPerFrame := wireSpec.SamplesPerFrame(20 * time.Millisecond)
	codec := newRS8MCodec(t)

	dz := NewDepacketizer(wireSpec)
	var got []Frame
	recorder := packetWriterFunc(func(p *pkt.Packet) error {
		got = append(got, dz.Depacketize(p))
		return nil
	})

	reader := fec.NewBlockReader(fec.SchemeRS8M, codec, factory, recorder, 16, zerolog.Nop())
	lossy := &lossyForwarder{reader: reader, dropEvery: 5}

	router := &Router{
		Source: Endpoint{Interface: AudioSource, Protocol: ProtoRTPRS8MSource, Writer: lossy},
		Repair: &Endpoint{Interface: AudioRepair, Protocol: ProtoRS8MRepair, Writer: lossy},
	}

	pz := NewPacketizer(factory, wireSpec, 98, 0xFEEDFACE, fec.SchemeRS8M)
	fw, err := fec.NewBlockWriter(fec.SchemeRS8M, codec, nil, factory, router, 20, 10, zerolog.Nop())
	require.NoError(t, err)

	const n = 60 // 3 full blocks of k=20
	for i := 0; i < n; i++ {
		p, err := pz.Packetize(constFrame(i, wireSpec.Channels, samplesPerFrame))
		require.NoError(t, err)
		require.NoError(t, fw.Write(p))
	}

	require.Len(t, got, n)
	for i, f := range got {
		want := float32(i%1000) / 1000
		for _, s := range f.Samples {
			require.InDelta(t, want, s, 1.0/32768)
		}
	}
	require.Greater(t, reader.Stats().Recovered, uint64(0))
	require.Equal(t, uint64(0), reader.Stats().Lost)
}

// packetWriterFunc adapts a plain function to PacketWriter, the same
// small-interface convenience pattern as http.HandlerFunc.
type packetWriterFunc func(p *pkt.Packet) error

func (f packetWriterFunc) WritePacket(p *pkt.Packet) error { return f(p) }

// TestPipelineMonoToStereoRemap reproduces spec.md §8 scenario 3: a mono
// input remapped to the stereo wire format duplicates each sample to
// both channels with no gain change.
func TestPipelineMonoToStereoRemap(t *testing.T) {
	factory := newTestFactory()
	wireSpec := SampleSpec{SampleRate: 8000, Channels: 2}
	monoSpec := SampleSpec{SampleRate: 8000, Channels: 1}
	samplesPerFrame := monoSpec.SamplesPerFrame(20 * time.Millisecond)

	mono := make([]float32, samplesPerFrame)
	for i := range mono {
		mono[i] = float32(i%200-100) / 100
	}

	stereo := RemapChannels(mono, monoSpec.Channels, wireSpec.Channels)
	require.Len(t, stereo, len(mono)*2)

	pz := NewPacketizer(factory, wireSpec, 98, 0x55, fec.SchemeNone)
	p, err := pz.Packetize(Frame{Samples: stereo, Duration: 20 * time.Millisecond})
	require.NoError(t, err)

	dz := NewDepacketizer(wireSpec)
	f := dz.Depacketize(p)
	require.Len(t, f.Samples, len(mono)*2)

	for i := 0; i < samplesPerFrame; i++ {
		left := f.Samples[i*2]
		right := f.Samples[i*2+1]
		require.InDelta(t, left, right, 1.0/32768, "frame %d: channels must match exactly, no gain change", i)
		require.InDelta(t, mono[i], left, 1.0/32768)
	}
}

// noopNotifier satisfies rtcp.Notifier with no-ops, for tests that don't
// exercise the RTCP control path.
type noopNotifier struct{}

func (noopNotifier) NotifySenderMetrics(rtcp.SenderMetrics)     {}
func (noopNotifier) NotifyReceiverMetrics(rtcp.ReceiverMetrics) {}
func (noopNotifier) NotifyHalted(uint32)                       {}
func (noopNotifier) ResolveSSRCCollision(old uint32) uint32     { return old + 1 }

// discardWriter satisfies PacketWriter by dropping everything, standing
// in for a control endpoint these tests never read from.
type discardWriter struct{}

func (discardWriter) WritePacket(p *pkt.Packet) error { return nil }

// TestSenderReceiverSlotLoopback wires a full SenderSlot through an
// in-process pkt.Queue into a ReceiverSlot, reproducing spec.md §8
// scenario 1 end to end: the receiver emits FrameHasGaps frames until
// its buffer first reaches target latency, then the exact sent sequence
// with no gaps.
func TestSenderReceiverSlotLoopback(t *testing.T) {
	factory := newTestFactory()
	wireSpec := SampleSpec{SampleRate: 8000, Channels: 2}
	q := pkt.NewQueue(256)

	senderCfg := SenderSlotConfig{
		InputSpec:   wireSpec,
		WireSpec:    wireSpec,
		PayloadType: 98,
		SSRC:        0x1111,
		RTCP:        config.NewRtcpConfig(),
	}
	require.NoError(t, senderCfg.FECWriter.DeduceDefaults())
	sender, err := NewSenderSlot(
		senderCfg,
		Endpoint{Interface: AudioSource, Protocol: ProtoRTP, Writer: &queueWriter{q: q}},
		Endpoint{Interface: AudioControl, Protocol: ProtoRTCP, Writer: discardWriter{}},
		nil,
		fec.NewCodecMap(),
		factory,
		nil,
		noopNotifier{},
		zerolog.Nop(),
	)
	require.NoError(t, err)

	latencyCfg := config.LatencyConfig{TargetLatency: 60 * time.Millisecond}
	require.NoError(t, latencyCfg.DeduceDefaults())
	jitterCfg := config.JitterMeterConfig{}
	require.NoError(t, jitterCfg.DeduceDefaults())

	recvCfg := ReceiverSlotConfig{
		WireSpec:   wireSpec,
		OutputSpec: wireSpec,
		LocalSSRC:  0x2222,
		Jitter:     jitterCfg,
		Latency:    latencyCfg,
		RTCP:       config.NewRtcpConfig(),
	}
	receiver, err := NewReceiverSlot(recvCfg, discardWriter{}, fec.NewCodecMap(), factory, nil, nil, noopNotifier{}, zerolog.Nop())
	require.NoError(t, err)

	samplesPerFrame := wireSpec.SamplesPerFrame(20 * time.Millisecond)
	const n = 30
	for i := 0; i < n; i++ {
		require.NoError(t, sender.Write(constFrame(i, wireSpec.Channels, samplesPerFrame)))
	}
	for p := q.TryPop(); p != nil; p = q.TryPop() {
		require.NoError(t, receiver.WritePacket(p))
	}

	var nonGap []Frame
	for i := 0; i < n+5; i++ {
		f := receiver.Read(20 * time.Millisecond)
		if !f.Flags.Has(FrameHasGaps) {
			nonGap = append(nonGap, f)
		}
	}

	require.Len(t, nonGap, n)
	for i, f := range nonGap {
		want := float32(i%1000) / 1000
		for _, s := range f.Samples {
			require.InDelta(t, want, s, 1.0/32768)
		}
	}
}

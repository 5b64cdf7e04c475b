// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"time"

	"github.com/rocwire/rocwire/audio/jitter"
	"github.com/rocwire/rocwire/audio/latency"
	"github.com/rocwire/rocwire/config"
	"github.com/rocwire/rocwire/fec"
	"github.com/rocwire/rocwire/pkt"
	"github.com/rocwire/rocwire/rtcp"
	"github.com/rs/zerolog"
)

// ReceiverSlotConfig bundles the per-stream knobs a ReceiverSlot needs
// (spec.md §4.8, §6).
type ReceiverSlotConfig struct {
	WireSpec   SampleSpec // rate/channels packets arrive encoded in
	OutputSpec SampleSpec // rate/channels Read returns

	LocalSSRC  uint32
	LocalCNAME string

	FECCodec        config.FecCodecConfig
	FECReaderWindow int

	Jitter  config.JitterMeterConfig
	Latency config.LatencyConfig
	RTCP    config.RtcpConfig
}

// receiverSink adapts ReceiverSlot.onPacket to fec.PacketWriter, letting
// a BlockReader's in-order (possibly restored) output feed straight into
// the slot.
type receiverSink struct {
	slot *ReceiverSlot
}

func (s *receiverSink) WritePacket(p *pkt.Packet) error {
	s.slot.onPacket(p, time.Now())
	return nil
}

// ReceiverSlot is the receive-side mirror of SenderSlot (spec.md §4.8):
// an optional FEC reader, then depacketizer → resampler → jitter meter →
// latency tuner → a buffered Frame queue drained by Read, plus a
// parallel RTCP communicator that tracks the remote sender and reports
// reception quality back to it.
//
// One ReceiverSlot tracks one remote stream; a caller juggling several
// remote senders on the same pair of endpoints owns one ReceiverSlot per
// SSRC (spec.md's "session" concept) — this type does not demultiplex
// inbound packets by SSRC itself.
type ReceiverSlot struct {
	cfg ReceiverSlotConfig

	fecReader    *fec.BlockReader // nil when FECCodec.Scheme == fec.SchemeNone
	depacketizer *Depacketizer
	resampler    Resampler
	jitterMeter  *jitter.Meter
	tuner        *latency.Tuner

	reporter     *rtcp.Reporter
	communicator *rtcp.Communicator

	buffered         []Frame
	bufferedDuration time.Duration
	started          bool // buffer has reached the target latency once

	haveLastArrival  bool
	lastArrival      time.Time
	lastStreamTs     uint32
	haveLastStreamTs bool

	remoteSSRC     uint32
	haveRemoteSSRC bool

	seqTracker SequenceTracker
	haveSeq    bool

	log zerolog.Logger
}

// NewReceiverSlot constructs a ReceiverSlot.
func NewReceiverSlot(cfg ReceiverSlotConfig, control PacketWriter, codecs *fec.CodecMap, factory *pkt.Factory, resampler Resampler, scalingEstimator latency.ScalingEstimator, notifier rtcp.Notifier, log zerolog.Logger) (*ReceiverSlot, error) {
	s := &ReceiverSlot{cfg: cfg, log: log.With().Str("component", "pipeline.receiver_slot").Logger()}

	if resampler == nil {
		pr, err := NewPassthroughResampler(cfg.WireSpec, cfg.OutputSpec)
		if err != nil {
			return nil, err
		}
		resampler = pr
	}
	s.resampler = resampler
	s.depacketizer = NewDepacketizer(cfg.WireSpec)
	s.jitterMeter = jitter.NewMeter(cfg.Jitter, log)
	s.tuner = latency.NewTuner(cfg.Latency, scalingEstimator, log)

	if cfg.FECCodec.Scheme != fec.SchemeNone {
		codec, err := codecs.New(cfg.FECCodec)
		if err != nil {
			return nil, err
		}
		s.fecReader = fec.NewBlockReader(cfg.FECCodec.Scheme, codec, factory, &receiverSink{slot: s}, cfg.FECReaderWindow, log)
	}

	cname := cfg.LocalCNAME
	if cname == "" {
		cname = rtcp.GenerateCNAME()
	}
	s.reporter = rtcp.NewReporter(cfg.RTCP, cfg.LocalSSRC, cname, notifier, log)
	s.communicator = rtcp.NewCommunicator(cfg.RTCP, s.reporter, s, factory, control, 5*time.Second, nil, log)

	return s, nil
}

// WritePacket implements PacketWriter: the caller's demultiplexer hands
// every source/repair packet for this stream here. With FEC configured
// the packet is framed through the block reader first, which calls back
// into onPacket in order; without FEC the packet is already composed and
// goes straight to onPacket.
func (s *ReceiverSlot) WritePacket(p *pkt.Packet) error {
	if p.RTP != nil {
		s.remoteSSRC = p.RTP.SourceID
		s.haveRemoteSSRC = true

		if !s.haveSeq {
			s.seqTracker.Init(p.RTP.SeqNum)
			s.haveSeq = true
		} else if err := s.seqTracker.Update(p.RTP.SeqNum); err != nil {
			s.log.Warn().Err(err).Uint16("seq", p.RTP.SeqNum).Msg("dropping packet")
			return nil
		}
	}
	if s.fecReader != nil {
		return s.fecReader.Write(p)
	}
	s.onPacket(p, time.Now())
	return nil
}

// onPacket turns one in-order (possibly restored) packet into a Frame,
// updates jitter statistics from its arrival timing, and appends it to
// the playout buffer (spec.md §4.3, §4.8).
func (s *ReceiverSlot) onPacket(p *pkt.Packet, now time.Time) {
	if s.haveLastArrival && s.haveLastStreamTs && s.cfg.WireSpec.SampleRate > 0 {
		wallDelta := now.Sub(s.lastArrival)
		tsDelta := int64(int32(p.RTP.StreamTimestamp - s.lastStreamTs))
		expected := time.Duration(tsDelta * int64(time.Second) / int64(s.cfg.WireSpec.SampleRate))
		transit := wallDelta - expected
		if transit < 0 {
			transit = -transit
		}
		s.jitterMeter.UpdateJitter(transit)
	}
	s.lastArrival = now
	s.lastStreamTs = p.RTP.StreamTimestamp
	s.haveLastArrival = true
	s.haveLastStreamTs = true

	frame := s.depacketizer.Depacketize(p)
	resampled, err := s.resampler.Resample(frame)
	if err != nil {
		s.log.Warn().Err(err).Msg("resample failed, dropping frame")
		return
	}
	if s.cfg.WireSpec.Channels != s.cfg.OutputSpec.Channels {
		resampled.Samples = RemapChannels(resampled.Samples, s.cfg.WireSpec.Channels, s.cfg.OutputSpec.Channels)
	}

	s.buffered = append(s.buffered, resampled)
	s.bufferedDuration += resampled.Duration
}

// Read pops the next frame for playout. Until the buffer has first
// accumulated at least the tuner's current target latency, and whenever
// the buffer is empty after that, Read instead emits a silent,
// FrameHasGaps frame of frameDuration (spec.md §8 scenario 1's warmup
// behavior), so a caller polling at a fixed period never blocks waiting
// for the buffer to fill.
func (s *ReceiverSlot) Read(frameDuration time.Duration) Frame {
	s.tuner.Update(s.jitterMeter.Metrics(), s.latencyMetrics())

	if !s.started && s.bufferedDuration >= s.tuner.Target() {
		s.started = true
	}
	if !s.started || len(s.buffered) == 0 {
		n := s.cfg.OutputSpec.SamplesPerFrame(frameDuration) * s.cfg.OutputSpec.Channels
		return Frame{
			Samples:  make([]float32, n),
			Duration: frameDuration,
			Flags:    FrameHasGaps,
		}
	}

	f := s.buffered[0]
	s.buffered = s.buffered[1:]
	s.bufferedDuration -= f.Duration
	return f
}

func (s *ReceiverSlot) latencyMetrics() latency.Metrics {
	return latency.Metrics{NiqLatency: s.bufferedDuration}
}

// Refresh drives the RTCP communicator's report-generation schedule and
// returns the next deadline (spec.md §4.8).
func (s *ReceiverSlot) Refresh(now time.Time) (time.Time, error) {
	deadline := s.communicator.GenerationDeadline(now)
	if !now.Before(deadline) {
		if err := s.communicator.GenerateReports(now); err != nil {
			return deadline, err
		}
		deadline = s.communicator.GenerationDeadline(now)
	}
	return deadline, nil
}

// ProcessControl folds one inbound compound RTCP packet into the
// reporter.
func (s *ReceiverSlot) ProcessControl(data []byte, now time.Time) error {
	return s.communicator.ProcessPacket(data, now)
}

// Goodbye sends a BYE for this receiver's reporting SSRC.
func (s *ReceiverSlot) Goodbye(now time.Time) error {
	return s.communicator.GenerateGoodbye(now)
}

// SendStreams implements rtcp.Participant: a pure receiver slot sends no
// audio of its own.
func (s *ReceiverSlot) SendStreams() []rtcp.SendStreamInfo { return nil }

// RecvStreams implements rtcp.Participant: this slot's one incoming
// stream, described in units an RR/XR needs.
func (s *ReceiverSlot) RecvStreams() []rtcp.RecvStreamInfo {
	var fecStats fec.ReaderStats
	if s.fecReader != nil {
		fecStats = s.fecReader.Stats()
	}
	if !s.haveRemoteSSRC {
		return nil
	}
	lm := s.latencyMetrics()
	return []rtcp.RecvStreamInfo{{
		SenderSSRC:        s.remoteSSRC,
		CumulativeLost:    int32(fecStats.Lost),
		HasLatencyMetrics: true,
		NiqLatency:        lm.NiqLatency,
		NiqStalling:       lm.NiqStalling,
		E2ELatency:        lm.E2ELatency,
		HasQueueMetrics:   true,
		TargetLatency:     s.tuner.Target(),
		FECBlockDuration:  lm.FECBlockDuration,
	}}
}

// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"math/rand"
	"time"

	"github.com/rocwire/rocwire/config"
	"github.com/rocwire/rocwire/fec"
	"github.com/rocwire/rocwire/pkt"
	"github.com/rocwire/rocwire/rtcp"
	"github.com/rs/zerolog"
)

// SenderSlotConfig bundles the per-stream knobs a SenderSlot needs
// (spec.md §4.8, §6).
type SenderSlotConfig struct {
	InputSpec   SampleSpec // rate/channels the caller writes frames in
	WireSpec    SampleSpec // rate/channels the packetizer encodes
	PayloadType uint8
	SSRC        uint32
	CNAME       string

	FECCodec  config.FecCodecConfig
	FECWriter config.FecWriterConfig
	RTCP      config.RtcpConfig
}

// SenderSlot composes frame_writer → resampler (if InputSpec.SampleRate
// != WireSpec.SampleRate) → packetizer → FEC writer (if FECCodec.Scheme
// != None) → router, plus a parallel RTCP communicator that generates
// control packets on its own schedule (spec.md §4.8).
type SenderSlot struct {
	cfg SenderSlotConfig

	resampler  Resampler
	packetizer *Packetizer
	fecWriter  *fec.BlockWriter // nil when FECCodec.Scheme == fec.SchemeNone
	router     *Router

	reporter     *rtcp.Reporter
	communicator *rtcp.Communicator

	log zerolog.Logger
}

// NewSenderSlot constructs a SenderSlot. repair may be nil when
// FECCodec.Scheme is fec.SchemeNone. notifier receives the RTCP
// callbacks derived from inbound reports about this slot's outgoing
// stream (spec.md §4.6).
func NewSenderSlot(cfg SenderSlotConfig, source, control Endpoint, repair *Endpoint, codecs *fec.CodecMap, factory *pkt.Factory, resampler Resampler, notifier rtcp.Notifier, log zerolog.Logger) (*SenderSlot, error) {
	if err := ValidateEndpoint(source); err != nil {
		return nil, err
	}
	if err := ValidateEndpoint(control); err != nil {
		return nil, err
	}
	haveRepair := repair != nil
	if haveRepair {
		if err := ValidateEndpoint(*repair); err != nil {
			return nil, err
		}
	}
	if err := ValidateEndpointPair(source, derefEndpoint(repair), haveRepair); err != nil {
		return nil, err
	}

	s := &SenderSlot{cfg: cfg, log: log.With().Str("component", "pipeline.sender_slot").Logger()}

	if resampler == nil {
		pr, err := NewPassthroughResampler(cfg.InputSpec, cfg.WireSpec)
		if err != nil {
			return nil, err
		}
		resampler = pr
	}
	s.resampler = resampler

	s.router = &Router{Source: source, Repair: repair}
	s.packetizer = NewPacketizer(factory, cfg.WireSpec, cfg.PayloadType, cfg.SSRC, cfg.FECCodec.Scheme)

	if cfg.FECCodec.Scheme != fec.SchemeNone {
		codec, err := codecs.New(cfg.FECCodec)
		if err != nil {
			return nil, err
		}
		fw, err := fec.NewBlockWriter(cfg.FECCodec.Scheme, codec, nil, factory, s.router, cfg.FECWriter.NSourcePackets, cfg.FECWriter.NRepairPackets, log)
		if err != nil {
			return nil, err
		}
		s.fecWriter = fw
	}

	cname := cfg.CNAME
	if cname == "" {
		cname = rtcp.GenerateCNAME()
	}
	s.reporter = rtcp.NewReporter(cfg.RTCP, cfg.SSRC, cname, notifier, log)
	s.communicator = rtcp.NewCommunicator(cfg.RTCP, s.reporter, s, factory, control.Writer, 5*time.Second, rand.New(rand.NewSource(int64(cfg.SSRC))), log)

	return s, nil
}

func derefEndpoint(e *Endpoint) Endpoint {
	if e == nil {
		return Endpoint{}
	}
	return *e
}

// Write accepts one input-rate frame, resamples/remaps/packetizes it,
// and routes it to the source (and, if a block completes, repair)
// endpoint (spec.md §4.8).
func (s *SenderSlot) Write(frame Frame) error {
	resampled, err := s.resampler.Resample(frame)
	if err != nil {
		return err
	}
	if s.cfg.InputSpec.Channels != s.cfg.WireSpec.Channels {
		resampled.Samples = RemapChannels(resampled.Samples, s.cfg.InputSpec.Channels, s.cfg.WireSpec.Channels)
	}

	p, err := s.packetizer.Packetize(resampled)
	if err != nil {
		return err
	}

	if s.fecWriter != nil {
		return s.fecWriter.Write(p)
	}
	return s.router.WritePacket(p)
}

// ProcessControl folds one inbound compound RTCP packet (received on
// this slot's control endpoint) into the reporter.
func (s *SenderSlot) ProcessControl(data []byte, now time.Time) error {
	return s.communicator.ProcessPacket(data, now)
}

// Refresh pulls any due control packets and returns the next deadline,
// per spec.md §4.8's "refresh(now) ... returns the next deadline".
func (s *SenderSlot) Refresh(now time.Time) (time.Time, error) {
	deadline := s.communicator.GenerationDeadline(now)
	if !now.Before(deadline) {
		if err := s.communicator.GenerateReports(now); err != nil {
			return deadline, err
		}
		deadline = s.communicator.GenerationDeadline(now)
	}
	return deadline, nil
}

// Goodbye sends a BYE on the control endpoint and is the last call a
// caller should make before tearing this slot down (spec.md §5
// "graceful shutdown... generate_goodbye(now) then draining outbound
// queues").
func (s *SenderSlot) Goodbye(now time.Time) error {
	return s.communicator.GenerateGoodbye(now)
}

// SendStreams implements rtcp.Participant: this slot's one outgoing
// stream, described in units an SR needs.
func (s *SenderSlot) SendStreams() []rtcp.SendStreamInfo {
	packetCount, octetCount := s.packetizer.Stats()
	return []rtcp.SendStreamInfo{{
		SSRC:        s.cfg.SSRC,
		NTPTime:     time.Now(),
		RTPTime:     s.packetizer.RTPTimestamp(),
		PacketCount: packetCount,
		OctetCount:  octetCount,
	}}
}

// RecvStreams implements rtcp.Participant: a pure sender slot receives
// no audio, so there is nothing to build reception-report blocks for.
func (s *SenderSlot) RecvStreams() []rtcp.RecvStreamInfo { return nil }

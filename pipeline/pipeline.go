// SPDX-License-Identifier: MPL-2.0

// Package pipeline implements the sender/receiver slot composition from
// spec.md §4.8: frame_writer → resampler → packetizer → FEC writer →
// router on the send side, and FEC reader → depacketizer → resampler →
// buffered playout queue on the receive side. Demultiplexing inbound
// packets by SSRC is left to the caller (one ReceiverSlot per remote
// stream), and there is no mixer stage. It glues together
// fec, rtcp and the audio/jitter, audio/latency packages the way the
// teacher's RTPPacketWriter/RTPPacketReader glue a codec, a sequencer and
// a transport together (media/rtp_packet_writer.go,
// rtp_packet_reader.go).
package pipeline

import "errors"

// Sentinel errors mirroring spec.md §7's error kinds, scoped to this
// package's own concerns (endpoint/config validation, non-blocking read).
var (
	ErrBadConfig   = errors.New("pipeline: bad config")
	ErrBadEndpoint = errors.New("pipeline: bad endpoint")
	ErrNoData      = errors.New("pipeline: no data")
)

// SPDX-License-Identifier: MPL-2.0

// Package wire implements the RTCP compound-packet builder and traverser
// from spec.md §4.5, reusing `github.com/pion/rtcp` for the RFC 3550
// envelope types (SR/RR/SDES/BYE) and hand-rolling the RFC 3611 XR report
// blocks plus the domain-specific measurement-info/delay-metrics/
// queue-metrics blocks pion/rtcp does not implement, grounded on
// `original_source/src/internal_modules/roc_rtcp/xr_traverser.{h,cpp}`
// and `builder.cpp`.
package wire

import (
	"encoding/binary"
	"errors"
)

// XR block type codes. RRTR/DLRR are the RFC 3611 standard codes;
// MeasurementInfo/DelayMetrics/QueueMetrics are private-use codes for the
// domain-specific metrics spec.md §4.5/§4.6 carries over XR (not an IANA
// registration, matching roc-toolkit's own private XR block extensions).
const (
	BlockTypeRRTR             = 4
	BlockTypeDLRR             = 5
	BlockTypeMeasurementInfo  = 210
	BlockTypeDelayMetrics     = 211
	BlockTypeQueueMetrics     = 212
)

var (
	ErrShortXRBlock   = errors.New("rtcp/wire: xr block too short")
	ErrUnknownXRBlock = errors.New("rtcp/wire: unknown xr block type")
)

// XRBlock is one report block nested inside an XR packet (spec.md §4.5's
// "XR with RRTR/DLRR/measurement-info/delay-metrics/queue-metrics
// sub-blocks").
type XRBlock interface {
	// BlockType returns this block's RFC 3611 block type code.
	BlockType() byte
	// Marshal encodes the full block, including its 4-byte block header,
	// padded to a 4-byte boundary.
	Marshal() ([]byte, error)
}

// encodeBlockHeader builds the common 4-byte RFC 3611 report block header: block
// type (8), type-specific (8), block length in 32-bit words minus one (16).
func encodeBlockHeader(bt byte, typeSpecific byte, payloadWords uint16) []byte {
	h := make([]byte, 4)
	h[0] = bt
	h[1] = typeSpecific
	binary.BigEndian.PutUint16(h[2:4], payloadWords)
	return h
}

// RRTRBlock is the RFC 3611 Receiver Reference Time Report Block: an NTP
// timestamp the receiver stamps when sending this XR, later echoed back
// by a DLRR block for reverse-direction RTT (spec.md §4.6).
type RRTRBlock struct {
	NTPSeconds  uint32
	NTPFraction uint32
}

func (RRTRBlock) BlockType() byte { return BlockTypeRRTR }

func (b RRTRBlock) Marshal() ([]byte, error) {
	// 4-byte block header followed by the 2-word (8-byte) NTP timestamp.
	out := make([]byte, 12)
	copy(out[0:4], encodeBlockHeader(BlockTypeRRTR, 0, 2))
	binary.BigEndian.PutUint32(out[4:8], b.NTPSeconds)
	binary.BigEndian.PutUint32(out[8:12], b.NTPFraction)
	return out, nil
}

func unmarshalRRTR(data []byte) (RRTRBlock, error) {
	if len(data) < 8 {
		return RRTRBlock{}, ErrShortXRBlock
	}
	return RRTRBlock{
		NTPSeconds:  binary.BigEndian.Uint32(data[0:4]),
		NTPFraction: binary.BigEndian.Uint32(data[4:8]),
	}, nil
}

// DLRRReport is one sub-block entry in a DLRR block, echoing the LRR
// (last RRTR received) timestamp plus the delay since then, per RFC 3611
// §4.5 and spec.md §4.6's reverse-direction RTT computation.
type DLRRReport struct {
	SSRC             uint32
	LastRR           uint32 // middle 32 bits of the NTP timestamp from the RRTR we received
	DelaySinceLastRR uint32 // units of 1/65536 second
}

// DLRRBlock is the RFC 3611 DLRR Report Block, one sub-block per SSRC
// whose RRTR we are echoing.
type DLRRBlock struct {
	Reports []DLRRReport
}

func (DLRRBlock) BlockType() byte { return BlockTypeDLRR }

func (b DLRRBlock) Marshal() ([]byte, error) {
	payload := make([]byte, 12*len(b.Reports))
	for i, r := range b.Reports {
		off := i * 12
		binary.BigEndian.PutUint32(payload[off:off+4], r.SSRC)
		binary.BigEndian.PutUint32(payload[off+4:off+8], r.LastRR)
		binary.BigEndian.PutUint32(payload[off+8:off+12], r.DelaySinceLastRR)
	}
	out := append(encodeBlockHeader(BlockTypeDLRR, 0, uint16(3*len(b.Reports))), payload...)
	return out, nil
}

func unmarshalDLRR(data []byte, words int) (DLRRBlock, error) {
	n := words / 3
	if len(data) < n*12 {
		return DLRRBlock{}, ErrShortXRBlock
	}
	b := DLRRBlock{Reports: make([]DLRRReport, n)}
	for i := 0; i < n; i++ {
		off := i * 12
		b.Reports[i] = DLRRReport{
			SSRC:             binary.BigEndian.Uint32(data[off : off+4]),
			LastRR:           binary.BigEndian.Uint32(data[off+4 : off+8]),
			DelaySinceLastRR: binary.BigEndian.Uint32(data[off+8 : off+12]),
		}
	}
	return b, nil
}

// MeasurementInfoBlock identifies the measurement interval the
// DelayMetrics/QueueMetrics blocks in the same XR packet describe
// (spec.md §4.6's "measurement info" XR sub-block).
type MeasurementInfoBlock struct {
	SSRC               uint32
	IntervalDurationNS uint64
}

func (MeasurementInfoBlock) BlockType() byte { return BlockTypeMeasurementInfo }

func (b MeasurementInfoBlock) Marshal() ([]byte, error) {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], b.SSRC)
	binary.BigEndian.PutUint64(payload[4:12], b.IntervalDurationNS)
	return append(encodeBlockHeader(BlockTypeMeasurementInfo, 0, 3), payload...), nil
}

func unmarshalMeasurementInfo(data []byte) (MeasurementInfoBlock, error) {
	if len(data) < 12 {
		return MeasurementInfoBlock{}, ErrShortXRBlock
	}
	return MeasurementInfoBlock{
		SSRC:               binary.BigEndian.Uint32(data[0:4]),
		IntervalDurationNS: binary.BigEndian.Uint64(data[4:12]),
	}, nil
}

// DelayMetricsBlock carries the NIQ/E2E latency estimates from spec.md
// §9's LatencyMetrics, reported from receiver back to sender over XR.
type DelayMetricsBlock struct {
	SSRC          uint32
	NiqLatencyNS  uint64
	NiqStallingNS uint64
	E2ELatencyNS  uint64
}

func (DelayMetricsBlock) BlockType() byte { return BlockTypeDelayMetrics }

func (b DelayMetricsBlock) Marshal() ([]byte, error) {
	payload := make([]byte, 28)
	binary.BigEndian.PutUint32(payload[0:4], b.SSRC)
	binary.BigEndian.PutUint64(payload[4:12], b.NiqLatencyNS)
	binary.BigEndian.PutUint64(payload[12:20], b.NiqStallingNS)
	binary.BigEndian.PutUint64(payload[20:28], b.E2ELatencyNS)
	return append(encodeBlockHeader(BlockTypeDelayMetrics, 0, 7), payload...), nil
}

func unmarshalDelayMetrics(data []byte) (DelayMetricsBlock, error) {
	if len(data) < 28 {
		return DelayMetricsBlock{}, ErrShortXRBlock
	}
	return DelayMetricsBlock{
		SSRC:          binary.BigEndian.Uint32(data[0:4]),
		NiqLatencyNS:  binary.BigEndian.Uint64(data[4:12]),
		NiqStallingNS: binary.BigEndian.Uint64(data[12:20]),
		E2ELatencyNS:  binary.BigEndian.Uint64(data[20:28]),
	}, nil
}

// QueueMetricsBlock carries receiver queue-depth metrics used to size
// the FEC reorder window and drive the latency tuner (spec.md §4.4/§4.6).
type QueueMetricsBlock struct {
	SSRC              uint32
	TargetLatencyNS   uint64
	FECBlockDurationNS uint64
}

func (QueueMetricsBlock) BlockType() byte { return BlockTypeQueueMetrics }

func (b QueueMetricsBlock) Marshal() ([]byte, error) {
	payload := make([]byte, 20)
	binary.BigEndian.PutUint32(payload[0:4], b.SSRC)
	binary.BigEndian.PutUint64(payload[4:12], b.TargetLatencyNS)
	binary.BigEndian.PutUint64(payload[12:20], b.FECBlockDurationNS)
	return append(encodeBlockHeader(BlockTypeQueueMetrics, 0, 5), payload...), nil
}

func unmarshalQueueMetrics(data []byte) (QueueMetricsBlock, error) {
	if len(data) < 20 {
		return QueueMetricsBlock{}, ErrShortXRBlock
	}
	return QueueMetricsBlock{
		SSRC:               binary.BigEndian.Uint32(data[0:4]),
		TargetLatencyNS:    binary.BigEndian.Uint64(data[4:12]),
		FECBlockDurationNS: binary.BigEndian.Uint64(data[12:20]),
	}, nil
}

// decodeXRBlock parses one block (header + payload) from data, returning
// the block, its total encoded length including header, and an error.
// Unknown block types are reported via ErrUnknownXRBlock so the caller
// (Traverser) can skip them per spec.md §4.5 "unknown types are skipped".
func decodeXRBlock(data []byte) (XRBlock, int, error) {
	if len(data) < 4 {
		return nil, 0, ErrShortXRBlock
	}
	bt := data[0]
	words := int(binary.BigEndian.Uint16(data[2:4]))
	total := 4 + words*4
	if total > len(data) {
		return nil, 0, ErrShortXRBlock
	}
	payload := data[4:total]

	switch bt {
	case BlockTypeRRTR:
		b, err := unmarshalRRTR(payload)
		return b, total, err
	case BlockTypeDLRR:
		b, err := unmarshalDLRR(payload, words)
		return b, total, err
	case BlockTypeMeasurementInfo:
		b, err := unmarshalMeasurementInfo(payload)
		return b, total, err
	case BlockTypeDelayMetrics:
		b, err := unmarshalDelayMetrics(payload)
		return b, total, err
	case BlockTypeQueueMetrics:
		b, err := unmarshalQueueMetrics(payload)
		return b, total, err
	default:
		return nil, total, ErrUnknownXRBlock
	}
}

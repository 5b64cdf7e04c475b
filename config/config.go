// SPDX-License-Identifier: MPL-2.0

// Package config holds the structs from spec.md §6 plus their
// deduceDefaults steps, grounded on the teacher's media.Codec /
// CodecFromSession pattern of filling out a partially-specified value
// struct (media/codec.go).
package config

import (
	"errors"
	"time"
)

// ErrBadConfig is the spec.md §7 BadConfig error kind.
var ErrBadConfig = errors.New("bad config")

// TunerBackend selects the latency-tuner algorithm family.
type TunerBackend int

const (
	TunerBackendNone TunerBackend = iota
	TunerBackendAdaptive
)

// TunerProfile is one of the three named profiles from spec.md §4.4.
type TunerProfile int

const (
	ProfileAuto TunerProfile = iota
	ProfileResponsive
	ProfileGradual
	ProfileIntact
)

// LatencyConfig configures audio/latency.Tuner (spec.md §6).
type LatencyConfig struct {
	TunerBackend TunerBackend
	TunerProfile TunerProfile

	TargetLatency    time.Duration
	LatencyTolerance time.Duration

	StartTargetLatency time.Duration
	MinTargetLatency   time.Duration
	MaxTargetLatency   time.Duration

	StaleTolerance time.Duration

	ScalingInterval time.Duration
	ScalingTolerance float64

	LatencyDecreaseRelativeThreshold float64

	StartingTimeout    time.Duration
	CooldownDecTimeout time.Duration
	CooldownIncTimeout time.Duration

	MaxJitterOverhead  float64
	MeanJitterOverhead float64
}

// DeduceDefaults fills zero-valued fields with defaults, per spec.md §6:
// "any zero-valued field ... is interpreted as 'use default'". Tuner
// profile selection depends on TargetLatency, matching the spec's
// "tuner profile depends on target latency" example.
func (c *LatencyConfig) DeduceDefaults() error {
	if c.TargetLatency < 0 {
		return errors.Join(ErrBadConfig, errors.New("target latency must be >= 0"))
	}
	if c.LatencyTolerance == 0 {
		c.LatencyTolerance = 20 * time.Millisecond
	}
	if c.MinTargetLatency == 0 {
		c.MinTargetLatency = 10 * time.Millisecond
	}
	if c.MaxTargetLatency == 0 {
		c.MaxTargetLatency = 2 * time.Second
	}
	if c.StartTargetLatency == 0 {
		c.StartTargetLatency = 200 * time.Millisecond
	}
	if c.StaleTolerance == 0 {
		c.StaleTolerance = 2 * time.Second
	}
	if c.ScalingInterval == 0 {
		c.ScalingInterval = 5 * time.Second
	}
	if c.ScalingTolerance == 0 {
		c.ScalingTolerance = 0.005
	}
	if c.LatencyDecreaseRelativeThreshold == 0 {
		c.LatencyDecreaseRelativeThreshold = 1.2
	}
	if c.StartingTimeout == 0 {
		c.StartingTimeout = 2 * time.Second
	}
	if c.CooldownDecTimeout == 0 {
		c.CooldownDecTimeout = 1 * time.Second
	}
	if c.CooldownIncTimeout == 0 {
		c.CooldownIncTimeout = 500 * time.Millisecond
	}
	if c.MaxJitterOverhead == 0 {
		c.MaxJitterOverhead = 1.1
	}
	if c.MeanJitterOverhead == 0 {
		c.MeanJitterOverhead = 2.0
	}
	if c.TunerProfile == ProfileAuto {
		switch {
		case c.TargetLatency == 0:
			c.TunerProfile = ProfileGradual
		case c.TargetLatency < 30*time.Millisecond:
			c.TunerProfile = ProfileResponsive
		default:
			c.TunerProfile = ProfileGradual
		}
	}
	if c.TunerBackend == TunerBackendNone {
		c.TunerBackend = TunerBackendAdaptive
	}
	return nil
}

// JitterMeterConfig configures audio/jitter.Meter (spec.md §4.3, §6).
type JitterMeterConfig struct {
	JitterWindow              int
	EnvelopeSmoothingWindowLen int
	EnvelopeResistanceExponent float64
	EnvelopeResistanceCoeff    float64
	PeakQuantileWindow         int
	PeakQuantileCoeff          float64 // e.g. 0.92 for the 92nd percentile
}

func (c *JitterMeterConfig) DeduceDefaults() error {
	if c.JitterWindow == 0 {
		c.JitterWindow = 30000
	}
	if c.EnvelopeSmoothingWindowLen == 0 {
		c.EnvelopeSmoothingWindowLen = 10
	}
	if c.EnvelopeResistanceExponent == 0 {
		c.EnvelopeResistanceExponent = 1.3
	}
	if c.EnvelopeResistanceCoeff == 0 {
		c.EnvelopeResistanceCoeff = 1.0
	}
	if c.PeakQuantileWindow == 0 {
		c.PeakQuantileWindow = 10000
	}
	if c.PeakQuantileCoeff == 0 {
		c.PeakQuantileCoeff = 0.92
	}
	if c.PeakQuantileCoeff <= 0 || c.PeakQuantileCoeff >= 1 {
		return errors.Join(ErrBadConfig, errors.New("peak quantile coeff must be in (0,1)"))
	}
	return nil
}

// FECScheme mirrors pkt.FECScheme without importing pkt, so config has no
// dependency on the packet layer.
type FECScheme uint8

const (
	FECSchemeNone FECScheme = iota
	FECSchemeRS8M
	FECSchemeLDPCStaircase
)

// FecCodecConfig configures the block codec (spec.md §6).
type FecCodecConfig struct {
	Scheme       FECScheme
	LDPCPRNGSeed uint64
	LDPCN1       int
	RSM          int // Reed-Solomon symbol size in bytes, normally 1 (RS m=8)
}

func (c *FecCodecConfig) DeduceDefaults() error {
	if c.RSM == 0 {
		c.RSM = 1
	}
	if c.LDPCN1 == 0 {
		c.LDPCN1 = 7
	}
	return nil
}

// FecWriterConfig configures fec.BlockWriter (spec.md §4.1, §6).
type FecWriterConfig struct {
	NSourcePackets int // k
	NRepairPackets int // r
}

func (c *FecWriterConfig) DeduceDefaults() error {
	if c.NSourcePackets == 0 {
		c.NSourcePackets = 20
	}
	if c.NRepairPackets == 0 {
		c.NRepairPackets = 10
	}
	if c.NSourcePackets < 1 {
		return errors.Join(ErrBadConfig, errors.New("n_source_packets must be >= 1"))
	}
	return nil
}

// RtcpRttConfig tunes the RTT estimator's outlier rejection window.
type RtcpRttConfig struct {
	QuantileWindow int
}

func (c *RtcpRttConfig) DeduceDefaults() error {
	if c.QuantileWindow == 0 {
		c.QuantileWindow = 32
	}
	return nil
}

// RtcpConfig configures rtcp.Reporter and rtcp.Communicator (spec.md §6).
type RtcpConfig struct {
	InactivityTimeout time.Duration
	RTTConfig         RtcpRttConfig
	EnableSRRR        bool
	EnableXR          bool
	EnableSDES        bool
}

func (c *RtcpConfig) DeduceDefaults() error {
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = 30 * time.Second
	}
	if err := c.RTTConfig.DeduceDefaults(); err != nil {
		return err
	}
	// EnableSRRR/EnableXR/EnableSDES follow the same zero-means-default
	// rule as every other field here: false is indistinguishable from
	// "not set", so DeduceDefaults turns it on. A caller that wants one
	// of these off must set it back to false after calling
	// DeduceDefaults, not before.
	if !c.EnableSRRR {
		c.EnableSRRR = true
	}
	if !c.EnableXR {
		c.EnableXR = true
	}
	if !c.EnableSDES {
		c.EnableSDES = true
	}
	return nil
}

// NewRtcpConfig returns an RtcpConfig with all optional features enabled,
// suitable as a starting point before selectively disabling features.
func NewRtcpConfig() RtcpConfig {
	return RtcpConfig{EnableSRRR: true, EnableXR: true, EnableSDES: true}
}

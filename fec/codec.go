// SPDX-License-Identifier: MPL-2.0

// Package fec implements the windowed, block-based erasure-coding frame
// from spec.md §4.1/§4.2: BlockWriter groups source packets into blocks
// and emits repair packets; BlockReader reorders and reconstructs. The
// FEC mathematics themselves are a pluggable BlockEncoder/BlockDecoder
// pair (spec.md §1, §9), selected via a Scheme and a CodecMap.
package fec

import (
	"errors"

	"github.com/rocwire/rocwire/config"
)

// Scheme is the closed tagged enum of FEC codecs the core knows how to
// frame (spec.md §9).
type Scheme = config.FECScheme

const (
	SchemeNone           = config.FECSchemeNone
	SchemeRS8M           = config.FECSchemeRS8M
	SchemeLDPCStaircase  = config.FECSchemeLDPCStaircase
)

// ErrBadConfig/ErrNoMem mirror the spec.md §7 error kinds surfaced by
// this package.
var (
	ErrBadConfig  = errors.New("fec: bad config")
	ErrNoMem      = errors.New("fec: no memory")
	ErrBadBuffer  = errors.New("fec: bad buffer")
)

// BlockEncoder generates repair payloads for a block of k equal-sized
// source payloads (spec.md §4.1). Implementations are expected to be
// stateless/reentrant across blocks (a fresh block is just a new call).
type BlockEncoder interface {
	// MaxBlockLength returns the largest k+r this encoder can handle.
	MaxBlockLength() int
	// Encode returns r repair payloads (each len(source[0]) bytes) for
	// the given k source payloads.
	Encode(source [][]byte, r int) ([][]byte, error)
}

// BlockDecoder reconstructs missing source payloads from however many
// source and repair payloads have been received so far (spec.md §4.2).
// It may be invoked multiple times for the same block as more packets
// arrive; implementations should be cheap to re-invoke incrementally.
type BlockDecoder interface {
	// Decode attempts reconstruction given k source slots and r repair
	// slots (nil entries are missing). It returns the payloads it could
	// recover, keyed by source index in [0,k). ok is false if no new
	// symbols were recovered this call (spec.md "retried after each new
	// packet arrives").
	Decode(sourceSlots, repairSlots [][]byte) (recovered map[int][]byte, ok bool, err error)
}

// Codec bundles an encoder and decoder for one scheme.
type Codec struct {
	Scheme  Scheme
	Encoder BlockEncoder
	Decoder BlockDecoder
}

// CodecMap is the "process-wide registry... passed by reference into
// factories" design note (spec.md §9) made into an explicit value type
// instead of a package-level singleton.
type CodecMap struct {
	codecs map[Scheme]func(config.FecCodecConfig) (Codec, error)
}

// NewCodecMap constructs the default registry with the RS8M and
// LDPC-staircase codecs.
func NewCodecMap() *CodecMap {
	m := &CodecMap{codecs: make(map[Scheme]func(config.FecCodecConfig) (Codec, error))}
	m.Register(SchemeRS8M, newRS8MCodec)
	m.Register(SchemeLDPCStaircase, newLDPCStaircaseCodec)
	return m
}

// Register adds or replaces the factory for a scheme, allowing
// third-party extension per spec.md §9's "capability traits/interfaces
// where third-party extension is expected".
func (m *CodecMap) Register(s Scheme, factory func(config.FecCodecConfig) (Codec, error)) {
	m.codecs[s] = factory
}

// New constructs a Codec for the given config's scheme.
func (m *CodecMap) New(cfg config.FecCodecConfig) (Codec, error) {
	if cfg.Scheme == SchemeNone {
		return Codec{Scheme: SchemeNone}, nil
	}
	factory, ok := m.codecs[cfg.Scheme]
	if !ok {
		return Codec{}, errors.Join(ErrBadConfig, errors.New("unknown fec scheme"))
	}
	return factory(cfg)
}

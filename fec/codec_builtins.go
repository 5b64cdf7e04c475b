// SPDX-License-Identifier: MPL-2.0

package fec

import (
	"github.com/rocwire/rocwire/config"
	"github.com/rocwire/rocwire/fec/ldpcstaircase"
	"github.com/rocwire/rocwire/fec/rs8m"
)

func newRS8MCodec(cfg config.FecCodecConfig) (Codec, error) {
	c := rs8m.New()
	return Codec{Scheme: SchemeRS8M, Encoder: c, Decoder: c}, nil
}

func newLDPCStaircaseCodec(cfg config.FecCodecConfig) (Codec, error) {
	n1 := cfg.LDPCN1
	if n1 == 0 {
		n1 = 7
	}
	c := ldpcstaircase.New(n1)
	return Codec{Scheme: SchemeLDPCStaircase, Encoder: c, Decoder: c}, nil
}

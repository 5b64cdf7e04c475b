// SPDX-License-Identifier: MPL-2.0

package pkt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRTPRoundTrip(t *testing.T) {
	factory := NewFactory(NewPool())
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	src := factory.New(len(payload))
	src.Flags = FlagPrepared | FlagAudio | FlagRTP | FlagComposed
	src.Buffer.Extend(len(payload))
	slice := src.Buffer.Reslice(0, len(payload))
	copy(slice.Bytes(), payload)
	src.RTP = &RTP{
		SourceID:        0xDEADBEEF,
		SeqNum:          4242,
		StreamTimestamp: 160000,
		Marker:          true,
		PayloadType:     98,
		Payload:         slice,
	}

	wire, err := EncodeRTP(src)
	require.NoError(t, err)

	got, err := DecodeRTP(factory, wire)
	require.NoError(t, err)

	require.Equal(t, src.RTP.SourceID, got.RTP.SourceID)
	require.Equal(t, src.RTP.SeqNum, got.RTP.SeqNum)
	require.Equal(t, src.RTP.StreamTimestamp, got.RTP.StreamTimestamp)
	require.Equal(t, src.RTP.Marker, got.RTP.Marker)
	require.Equal(t, src.RTP.PayloadType, got.RTP.PayloadType)
	require.Equal(t, payload, got.RTP.Payload.Bytes())
	require.True(t, got.Flags.Has(FlagComposed))
}

func TestEncodeRTPAppendsFECFooter(t *testing.T) {
	factory := NewFactory(NewPool())
	payload := []byte{9, 9, 9}
	footer := []byte{0, 1, 0, 2, 0, 20}

	src := factory.New(len(payload) + len(footer))
	src.Flags = FlagPrepared | FlagAudio
	src.Buffer.Extend(len(payload) + len(footer))
	dataSlice := src.Buffer.Reslice(0, len(payload))
	copy(dataSlice.Bytes(), payload)
	footerSlice := src.Buffer.Reslice(len(payload), len(footer))
	copy(footerSlice.Bytes(), footer)

	src.RTP = &RTP{PayloadType: 98, Payload: dataSlice}
	src.FEC = &FEC{Scheme: FECSchemeRS8M, PayloadID: footerSlice}

	wire, err := EncodeRTP(src)
	require.NoError(t, err)

	got, err := DecodeRTP(factory, wire)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, payload...), footer...), got.RTP.Payload.Bytes())
}

// SPDX-License-Identifier: MPL-2.0

package pkt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFactoryNewRelease(t *testing.T) {
	f := NewFactory(NewPool())
	p := f.New(256)
	require.True(t, p.Flags.Has(FlagPrepared))
	require.False(t, p.Flags.Has(FlagComposed))
	require.Equal(t, 0, p.Buffer.Len())

	p.Flags |= FlagRTP | FlagAudio
	p.RTP = &RTP{SourceID: 42}
	require.True(t, p.IsSource())
	require.False(t, p.IsRepair())

	f.Release(p)
}

func TestFactoryReusesPacket(t *testing.T) {
	f := NewFactory(NewPool())
	p1 := f.New(64)
	f.Release(p1)
	p2 := f.New(64)
	// Whether or not sync.Pool actually reuses p1's memory is not
	// guaranteed, but the returned packet must always be pristine.
	require.Equal(t, FlagPrepared, p2.Flags)
	require.Nil(t, p2.RTP)
	f.Release(p2)
}

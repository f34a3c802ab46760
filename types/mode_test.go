package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"open", "closed", "private", "conference"} {
		mode, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, s, mode.String())
	}
	_, err := ParseMode("hidden")
	require.Error(t, err)
	_, err = ParseMode("")
	require.Error(t, err)
}

func TestRoomMetaClone(t *testing.T) {
	meta := NewRoomMeta(100, 1)
	meta.Whitelist[2] = struct{}{}
	meta.Blacklist[3] = struct{}{}

	clone := meta.Clone()
	clone.Whitelist[4] = struct{}{}
	delete(clone.Blacklist, 3)
	clone.Mode = ModePrivate

	require.NotContains(t, meta.Whitelist, int64(4))
	require.Contains(t, meta.Blacklist, int64(3))
	require.Equal(t, ModeOpen, meta.Mode)
}

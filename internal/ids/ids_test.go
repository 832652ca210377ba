package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProducesValidLowercaseHex(t *testing.T) {
	id := New()
	require.True(t, Valid(string(id)))
	require.Len(t, string(id), 32)
}

func TestNewIsUnique(t *testing.T) {
	require.NotEqual(t, New(), New())
}

func TestValidRejectsMalformed(t *testing.T) {
	require.False(t, Valid("not-hex"))
	require.False(t, Valid("short"))
	require.False(t, Valid(""))
}

func TestInviteChecksumRoundTrips(t *testing.T) {
	code := NewInviteCode()
	sum := InviteChecksum(code)
	require.Len(t, sum, 4)
	require.True(t, VerifyInviteChecksum(code, sum))
	require.False(t, VerifyInviteChecksum(code+"x", sum))
}

package convstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSharedCreatesDefault(t *testing.T) {
	s := New(t.TempDir())
	sh, err := s.LoadShared("conv1")
	require.NoError(t, err)
	require.Equal(t, "conv1", sh.ConversationID)
	require.NotNil(t, sh.ActiveBranches)
	require.Empty(t, sh.ActiveBranches)
}

func TestSaveThenLoadSharedRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	sh, err := s.LoadShared("conv1")
	require.NoError(t, err)
	sh.ActiveBranches["m1"] = "b1"
	sh.TotalBranchCount = 2
	require.NoError(t, s.SaveShared(sh))

	require.FileExists(t, filepath.Join(dir, "conversation-state", "co", "conv1.json"))

	fresh := New(dir)
	reloaded, err := fresh.LoadShared("conv1")
	require.NoError(t, err)
	require.Equal(t, "b1", reloaded.ActiveBranches["m1"])
	require.Equal(t, 2, reloaded.TotalBranchCount)
}

func TestSetActiveBranchPersists(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.SetActiveBranch("conv1", "m1", "b2"))

	fresh := New(dir)
	sh, err := fresh.LoadShared("conv1")
	require.NoError(t, err)
	require.Equal(t, "b2", sh.ActiveBranches["m1"])
}

func TestPerUserDetachReattachRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	pu, err := s.LoadUser("conv1", "u1")
	require.NoError(t, err)

	pu.Detach()
	pu.DetachedBranches["m1"] = "b-private"
	require.NoError(t, s.SaveUser(pu))

	require.FileExists(t, filepath.Join(dir, "user-conversation-state", "co", "conv1", "u1.json"))

	fresh := New(dir)
	reloaded, err := fresh.LoadUser("conv1", "u1")
	require.NoError(t, err)
	require.True(t, reloaded.IsDetached)

	shared := newShared("conv1")
	shared.ActiveBranches["m1"] = "b-shared"
	branch, ok := reloaded.ActiveBranchFor("m1", shared)
	require.True(t, ok)
	require.Equal(t, "b-private", branch)

	reloaded.Reattach()
	branch, ok = reloaded.ActiveBranchFor("m1", shared)
	require.True(t, ok)
	require.Equal(t, "b-shared", branch)
}

func TestLoadUserMissingReturnsDefault(t *testing.T) {
	s := New(t.TempDir())
	pu, err := s.LoadUser("conv1", "nobody")
	require.NoError(t, err)
	require.False(t, pu.IsDetached)
	require.Nil(t, pu.DetachedBranches)
}

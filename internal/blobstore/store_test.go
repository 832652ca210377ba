package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/loomchat/internal/errs"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := New(t.TempDir())
	id, err := s.Save(context.Background(), "image/png", []byte("fake-png-bytes"))
	require.NoError(t, err)

	data, meta, err := s.Load(id)
	require.NoError(t, err)
	require.Equal(t, "fake-png-bytes", string(data))
	require.Equal(t, "image/png", meta.MimeType)
	require.Equal(t, int64(len("fake-png-bytes")), meta.Size)
}

func TestSaveIsIdempotentForDuplicateBytes(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	id1, err := s.Save(ctx, "text/plain", []byte("hello"))
	require.NoError(t, err)
	id2, err := s.Save(ctx, "text/plain", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestSaveDifferentBytesGetDifferentIDs(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	id1, err := s.Save(ctx, "text/plain", []byte("hello"))
	require.NoError(t, err)
	id2, err := s.Save(ctx, "text/plain", []byte("world"))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := New(t.TempDir())
	_, _, err := s.Load("does-not-exist")
	require.True(t, errs.Is(err, errs.NotFound))
}

func TestDeleteRemovesBlobAndMetadata(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	id, err := s.Save(ctx, "text/plain", []byte("to-delete"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(id))
	_, _, err = s.Load(id)
	require.True(t, errs.Is(err, errs.NotFound))

	// deleting again is a no-op, not an error
	require.NoError(t, s.Delete(id))
}

func TestDeleteThenSaveSameBytesGetsFreshID(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	id1, err := s.Save(ctx, "text/plain", []byte("recycle"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(id1))

	id2, err := s.Save(ctx, "text/plain", []byte("recycle"))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestReindexRestoresDedupAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1 := New(dir)
	id1, err := s1.Save(ctx, "text/plain", []byte("survives restart"))
	require.NoError(t, err)

	// a fresh Store has a cold index and would mint a new ID...
	s2 := New(dir)
	require.NoError(t, s2.Reindex())

	// ...but after Reindex the duplicate write dedups to the original.
	id2, err := s2.Save(ctx, "text/plain", []byte("survives restart"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

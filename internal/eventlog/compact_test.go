package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/loomchat/internal/events"
)

func TestCompactDropsReconstructableEvents(t *testing.T) {
	l := newTestLog(t)
	id := Conversation("aaaabbbbccccdddd")
	require.NoError(t, l.Init(id))

	require.NoError(t, l.Append(id, mkEnv(t, events.MessageCreated, events.MessageCreatedPayload{MessageID: "m1"})))
	require.NoError(t, l.Append(id, mkEnv(t, events.ActiveBranchChanged, events.ActiveBranchChangedPayload{MessageID: "m1", BranchID: "b2"})))
	require.NoError(t, l.Append(id, mkEnv(t, events.MessageOrderChanged, events.MessageOrderChangedPayload{MessageID: "m1", NewOrder: 3})))
	require.NoError(t, l.Append(id, mkEnv(t, events.MessageDeleted, events.MessageDeletedPayload{MessageID: "m2"})))
	require.NoError(t, l.Close(id))

	report, err := l.Compact(context.Background(), "aaaabbbbccccdddd", CompactOptions{KeepBackup: true})
	require.NoError(t, err)
	require.Equal(t, 4, report.EventsBefore)
	require.Equal(t, 2, report.EventsAfter)
	require.Equal(t, 1, report.RemovedByKind[events.ActiveBranchChanged])
	require.Equal(t, 1, report.RemovedByKind[events.MessageOrderChanged])
	require.Less(t, report.BytesAfter, report.BytesBefore)

	var kinds []events.Kind
	require.NoError(t, l.Load(id, func(e events.Envelope) error {
		kinds = append(kinds, e.Type)
		return nil
	}))
	require.Equal(t, []events.Kind{events.MessageCreated, events.MessageDeleted}, kinds)
}

func TestCompactNoRemovableEventsPreservesByteCount(t *testing.T) {
	l := newTestLog(t)
	id := Conversation("aaaabbbbccccdddd")
	require.NoError(t, l.Init(id))
	require.NoError(t, l.Append(id, mkEnv(t, events.MessageCreated, events.MessageCreatedPayload{MessageID: "m1"})))
	require.NoError(t, l.Append(id, mkEnv(t, events.MessageDeleted, events.MessageDeletedPayload{MessageID: "m2"})))
	require.NoError(t, l.Close(id))

	report, err := l.Compact(context.Background(), "aaaabbbbccccdddd", CompactOptions{KeepBackup: false})
	require.NoError(t, err)
	require.Equal(t, report.EventsBefore, report.EventsAfter)
	require.Equal(t, report.BytesBefore, report.BytesAfter)
}

type memBlobs struct{ n int }

func (m *memBlobs) Save(_ context.Context, _ string, _ []byte) (string, error) {
	m.n++
	return "blob-id", nil
}

func TestCompactRelocatesDebugPayloadsToBlobs(t *testing.T) {
	l := newTestLog(t)
	id := Conversation("aaaabbbbccccdddd")
	require.NoError(t, l.Init(id))
	require.NoError(t, l.Append(id, mkEnv(t, events.MessageBranchUpdated, events.MessageBranchUpdatedPayload{
		MessageID:    "m1",
		BranchID:     "b1",
		Content:      "hi",
		DebugRequest: map[string]any{"huge": "payload"},
	})))
	require.NoError(t, l.Close(id))

	blobs := &memBlobs{}
	report, err := l.Compact(context.Background(), "aaaabbbbccccdddd", CompactOptions{RelocateDebugToBlobs: true, Blobs: blobs})
	require.NoError(t, err)
	require.Equal(t, 1, report.DebugPayloadsStripped)
	require.Equal(t, 1, blobs.n)

	var payload events.MessageBranchUpdatedPayload
	require.NoError(t, l.Load(id, func(e events.Envelope) error {
		return e.Decode(&payload)
	}))
	require.Nil(t, payload.DebugRequest)
	require.Equal(t, "blob-id", payload.DebugRequestBlob)
	require.Equal(t, "hi", payload.Content)
}

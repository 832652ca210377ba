package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/events"
)

func TestReplayDeterministic(t *testing.T) {
	dir := t.TempDir()
	log := eventlog.New(dir)
	id := eventlog.Conversation("aaaabbbbccccdddd")
	require.NoError(t, log.Init(id))

	now := time.Now()
	env1, _ := events.New(now, events.MessageCreated, events.MessageCreatedPayload{
		MessageID: "m1", ConversationID: "aaaabbbbccccdddd", Order: 0, BranchID: "b1", ParentBranchID: "root", Role: "user", Content: "hi",
	})
	env2, _ := events.New(now, events.MessageCreated, events.MessageCreatedPayload{
		MessageID: "m2", ConversationID: "aaaabbbbccccdddd", Order: 1, BranchID: "b2", ParentBranchID: "b1", Role: "assistant", Content: "hello",
	})
	require.NoError(t, log.Append(id, env1))
	require.NoError(t, log.Append(id, env2))

	t1, err := Conversation(log, "aaaabbbbccccdddd", nil)
	require.NoError(t, err)
	t2, err := Conversation(log, "aaaabbbbccccdddd", nil)
	require.NoError(t, err)

	require.Equal(t, len(t1.Messages()), len(t2.Messages()))
	m1a, _ := t1.Message("m1")
	m1b, _ := t2.Message("m1")
	require.Equal(t, m1a.Order, m1b.Order)
	require.Equal(t, m1a.ActiveBranchID, m1b.ActiveBranchID)
}

func TestFlagsHonorsQ1Events(t *testing.T) {
	dir := t.TempDir()
	log := eventlog.New(dir)
	require.NoError(t, log.Init(eventlog.Main()))

	now := time.Now()
	env, _ := events.New(now, events.UserTOSAccepted, events.UserTOSAcceptedPayload{UserID: "u1", TOSVersion: "v2", AcceptedMs: now.UnixMilli()})
	require.NoError(t, log.Append(eventlog.Main(), env))

	f, err := Flags(log, "u1", nil)
	require.NoError(t, err)
	require.True(t, f.TOSAccepted)
	require.Equal(t, "v2", f.TOSVersion)
}

func TestUnknownKindCounted(t *testing.T) {
	dir := t.TempDir()
	log := eventlog.New(dir)
	id := eventlog.Conversation("aaaabbbbccccdddd")
	require.NoError(t, log.Init(id))

	env, _ := events.New(time.Now(), events.Kind("some_future_kind"), map[string]any{"x": 1})
	require.NoError(t, log.Append(id, env))

	stats := &Stats{}
	_, err := Conversation(log, "aaaabbbbccccdddd", stats)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.UnknownKinds)
}

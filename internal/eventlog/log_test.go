package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/loomchat/internal/events"
)

func newTestLog(t *testing.T) *EventLog {
	t.Helper()
	dir := t.TempDir()
	return New(dir)
}

func mkEnv(t *testing.T, kind events.Kind, payload any) events.Envelope {
	t.Helper()
	env, err := events.New(time.Now(), kind, payload)
	require.NoError(t, err)
	return env
}

func TestAppendRequiresInit(t *testing.T) {
	l := newTestLog(t)
	env := mkEnv(t, events.MessageDeleted, events.MessageDeletedPayload{MessageID: "m1"})
	err := l.Append(Conversation("aaaabbbbccccdddd"), env)
	require.Error(t, err)
}

func TestAppendThenLoadRoundTrips(t *testing.T) {
	l := newTestLog(t)
	id := Conversation("aaaabbbbccccdddd")
	require.NoError(t, l.Init(id))

	env1 := mkEnv(t, events.MessageCreated, events.MessageCreatedPayload{MessageID: "m1", Order: 0})
	env2 := mkEnv(t, events.MessageCreated, events.MessageCreatedPayload{MessageID: "m2", Order: 1})
	require.NoError(t, l.Append(id, env1))
	require.NoError(t, l.Append(id, env2))

	var got []events.Envelope
	require.NoError(t, l.Load(id, func(e events.Envelope) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 2)
	require.Equal(t, events.MessageCreated, got[0].Type)
	require.Equal(t, events.MessageCreated, got[1].Type)
}

func TestLoadMissingLogIsEmptyNotError(t *testing.T) {
	l := newTestLog(t)
	var got []events.Envelope
	err := l.Load(Conversation("aaaabbbbccccdddd"), func(e events.Envelope) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLoadSkipsMalformedAndBlankLines(t *testing.T) {
	l := newTestLog(t)
	id := Conversation("aaaabbbbccccdddd")
	require.NoError(t, l.Init(id))

	p, err := path(l.baseDir, id)
	require.NoError(t, err)
	require.NoError(t, l.Close(id))

	raw := "\n{not json}\n" + mustLine(t, mkEnv(t, events.MessageDeleted, events.MessageDeletedPayload{MessageID: "m1"})) + "\n   \n"
	require.NoError(t, os.WriteFile(p, []byte(raw), 0o644))

	var got []events.Envelope
	require.NoError(t, l.Load(id, func(e events.Envelope) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 1)
	require.Equal(t, events.MessageDeleted, got[0].Type)
}

func TestCloseIsIdempotent(t *testing.T) {
	l := newTestLog(t)
	id := Conversation("aaaabbbbccccdddd")
	require.NoError(t, l.Init(id))
	require.NoError(t, l.Close(id))
	require.NoError(t, l.Close(id))
}

func TestPathPolicySharding(t *testing.T) {
	base := "/data"
	p, err := path(base, Conversation("aabbccddeeff00112233445566778899"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "conversations", "aa", "bb", "aabbccddeeff00112233445566778899.jsonl"), p)

	p, err = path(base, User("aabbccddeeff00112233445566778899"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "users", "aa", "aabbccddeeff00112233445566778899.jsonl"), p)

	p, err = path(base, Main())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "events.jsonl"), p)
}

func mustLine(t *testing.T, env events.Envelope) string {
	t.Helper()
	b, err := env.MarshalLine()
	require.NoError(t, err)
	return string(b)
}

package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/ids"
)

func newMainAppender(t *testing.T) (Appender, *eventlog.EventLog) {
	t.Helper()
	log := eventlog.New(t.TempDir())
	require.NoError(t, log.Init(eventlog.Main()))
	return func(env events.Envelope) error { return log.Append(eventlog.Main(), env) }, log
}

func TestGrantDefaultsCurrencyToCredit(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()

	require.NoError(t, l.RecordGrant(appendFn, time.Now(), GrantEntry{GrantType: "mint", Amount: 5, ToUserID: "u1"}))
	require.Equal(t, int64(5), l.Balance("u1", ""))
	require.Equal(t, int64(5), l.Balance("u1", "credit"))
}

func TestGrantNormalizesLegacyCurrency(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()

	require.NoError(t, l.RecordGrant(appendFn, time.Now(), GrantEntry{GrantType: "mint", Amount: 3, Currency: "opus", ToUserID: "u1"}))
	require.Equal(t, int64(3), l.Balance("u1", "claude3opus"))
	require.Equal(t, int64(0), l.Balance("u1", "opus"))
}

func TestGrantCanDriveBalanceNegative(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()

	require.NoError(t, l.RecordGrant(appendFn, time.Now(), GrantEntry{GrantType: "burn", Amount: -10, ToUserID: "u1"}))
	require.Equal(t, int64(-10), l.Balance("u1", "credit"))
}

func TestCapabilityHasActiveHonorsExpiry(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()

	now := time.Now()
	exp := now.Add(time.Hour)
	require.NoError(t, l.RecordCapability(appendFn, now, "u1", "granted", "beta_access", &exp))
	require.True(t, l.HasActive("u1", "beta_access", now.UnixMilli()))
	require.False(t, l.HasActive("u1", "beta_access", exp.Add(time.Minute).UnixMilli()))
}

func TestCapabilityRevokedIsNotActive(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()
	now := time.Now()
	require.NoError(t, l.RecordCapability(appendFn, now, "u1", "granted", "beta_access", nil))
	require.True(t, l.HasActive("u1", "beta_access", now.UnixMilli()))
	require.NoError(t, l.RecordCapability(appendFn, now, "u1", "revoked", "beta_access", nil))
	require.False(t, l.HasActive("u1", "beta_access", now.UnixMilli()))
}

func TestInviteOverclaimScenario(t *testing.T) {
	appendFn, log := newMainAppender(t)
	l := New()
	now := time.Now()

	require.NoError(t, l.CreateInvite(appendFn, now, "LIM", "creator", 10, "credit", nil, 1))

	require.NoError(t, l.Claim(appendFn, now, "LIM", "u1"))
	require.Equal(t, int64(10), l.Balance("u1", "credit"))

	err := l.Claim(appendFn, now, "LIM", "u2")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Conflict))
	require.Equal(t, int64(0), l.Balance("u2", "credit"))

	// re-replay from the durable log and confirm no stray grant event for u2
	replayed, err := Replay(log)
	require.NoError(t, err)
	require.Equal(t, int64(10), replayed.Balance("u1", "credit"))
	require.Equal(t, int64(0), replayed.Balance("u2", "credit"))
}

func TestClaimExpiredInviteFails(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()
	now := time.Now()
	past := now.Add(-time.Hour)

	require.NoError(t, l.CreateInvite(appendFn, now, "OLD", "creator", 5, "credit", &past, 0))
	err := l.Claim(appendFn, now, "OLD", "u1")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Conflict))
}

func TestClaimUnknownCodeIsNotFound(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()
	err := l.Claim(appendFn, time.Now(), "NOPE", "u1")
	require.True(t, errs.Is(err, errs.NotFound))
}

func TestValidateChecksummedRejectsMistypedCode(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()
	now := time.Now()
	require.NoError(t, l.CreateInvite(appendFn, now, "ABCD", "creator", 5, "credit", nil, 1))

	sum := ids.InviteChecksum("ABCD")
	require.NoError(t, l.ValidateChecksummed("ABCD", sum, now))

	err := l.ValidateChecksummed("ABCE", sum, now)
	require.True(t, errs.Is(err, errs.Validation))
}

func TestCreateInviteDuplicateCodeIsConflict(t *testing.T) {
	appendFn, _ := newMainAppender(t)
	l := New()
	now := time.Now()
	require.NoError(t, l.CreateInvite(appendFn, now, "DUP", "creator", 1, "credit", nil, 0))
	err := l.CreateInvite(appendFn, now, "DUP", "creator", 1, "credit", nil, 0)
	require.True(t, errs.Is(err, errs.Conflict))
}

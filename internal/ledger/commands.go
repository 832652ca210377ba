package ledger

import (
	"time"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/ids"
)

// Appender durably persists one event before it is folded into ledger
// state, mirroring internal/tree's write path (Appender(env) -> Apply(env)).
type Appender func(events.Envelope) error

// RecordGrant appends a grant_info event and folds it into balances.
func (l *Ledger) RecordGrant(appendFn Appender, now time.Time, entry GrantEntry) error {
	payload := events.GrantInfoPayload{
		EntryID: string(ids.New()), GrantType: entry.GrantType, Amount: entry.Amount,
		Currency: entry.Currency, FromUserID: entry.FromUserID, ToUserID: entry.ToUserID,
		Reason: entry.Reason, Details: entry.Details,
	}
	env, err := events.New(now, events.GrantInfo, payload)
	if err != nil {
		return errs.Wrap(err, errs.Internal, "build grant event")
	}
	if err := appendFn(env); err != nil {
		return errs.Wrap(err, errs.IoError, "append grant event")
	}
	return l.Apply(env)
}

// RecordCapability appends a grant_capability event.
func (l *Ledger) RecordCapability(appendFn Appender, now time.Time, userID, action, capability string, expiresAt *time.Time) error {
	var expMs int64
	if expiresAt != nil {
		expMs = expiresAt.UnixMilli()
	}
	payload := events.GrantCapabilityPayload{
		EntryID: string(ids.New()), UserID: userID, Action: action, Capability: capability, ExpiresAtMs: expMs,
	}
	env, err := events.New(now, events.GrantCapability, payload)
	if err != nil {
		return errs.Wrap(err, errs.Internal, "build grant capability event")
	}
	if err := appendFn(env); err != nil {
		return errs.Wrap(err, errs.IoError, "append grant capability event")
	}
	return l.Apply(env)
}

// CreateInvite appends an invite_created event.
func (l *Ledger) CreateInvite(appendFn Appender, now time.Time, code, creatorID string, amount int64, currency string, expiresAt *time.Time, maxUses int) error {
	if _, exists := l.Invite(code); exists {
		return errs.New(errs.Conflict, "invite code already exists: "+code)
	}
	var expMs int64
	if expiresAt != nil {
		expMs = expiresAt.UnixMilli()
	}
	payload := events.InviteCreatedPayload{
		Code: code, CreatorID: creatorID, Amount: amount, Currency: currency, ExpiresAtMs: expMs, MaxUses: maxUses,
	}
	env, err := events.New(now, events.InviteCreated, payload)
	if err != nil {
		return errs.Wrap(err, errs.Internal, "build invite created event")
	}
	if err := appendFn(env); err != nil {
		return errs.Wrap(err, errs.IoError, "append invite created event")
	}
	return l.Apply(env)
}

// ValidateChecksummed is Validate plus a cheap pre-check against a
// checksum suffix the claiming surface captured alongside the code,
// rejecting an obviously mistyped code before it ever touches replayed
// ledger state.
func (l *Ledger) ValidateChecksummed(code, checksum string, now time.Time) error {
	if checksum != "" && !ids.VerifyInviteChecksum(code, checksum) {
		return errs.New(errs.Validation, "invite code checksum mismatch: "+code)
	}
	return l.Validate(code, now)
}

// Validate reports whether code is currently claimable: known, unexpired,
// and under its use limit. Expiry and use-limit checks run again at claim
// time, which is authoritative.
func (l *Ledger) Validate(code string, now time.Time) error {
	inv, ok := l.Invite(code)
	if !ok {
		return errs.New(errs.NotFound, "invite code not found: "+code)
	}
	nowMs := now.UnixMilli()
	if inv.expired(nowMs) {
		return errs.New(errs.Conflict, "invite code expired: "+code)
	}
	if inv.exhausted() {
		return errs.New(errs.Conflict, "invite code already used: "+code)
	}
	return nil
}

// Claim atomically validates and redeems code for claimerID, emitting
// invite_claimed then a grant_info event for the claimer. claimMu
// serializes the validate-then-append sequence so two concurrent claims
// on a maxUses=1 code cannot both observe UsedCount==0.
func (l *Ledger) Claim(appendFn Appender, now time.Time, code, claimerID string) error {
	l.claimMu.Lock()
	defer l.claimMu.Unlock()

	if err := l.Validate(code, now); err != nil {
		return err
	}
	inv, _ := l.Invite(code)

	claimEnv, err := events.New(now, events.InviteClaimed, events.InviteClaimedPayload{Code: code, ClaimerID: claimerID})
	if err != nil {
		return errs.Wrap(err, errs.Internal, "build invite claimed event")
	}
	if err := appendFn(claimEnv); err != nil {
		return errs.Wrap(err, errs.IoError, "append invite claimed event")
	}
	if err := l.Apply(claimEnv); err != nil {
		return err
	}

	grantEnv, err := events.New(now, events.GrantInfo, events.GrantInfoPayload{
		EntryID: string(ids.New()), GrantType: "mint", Amount: inv.Amount, Currency: inv.Currency,
		ToUserID: claimerID, Reason: "invite:" + code,
	})
	if err != nil {
		return errs.Wrap(err, errs.Internal, "build invite grant event")
	}
	if err := appendFn(grantEnv); err != nil {
		return errs.Wrap(err, errs.IoError, "append invite grant event")
	}
	return l.Apply(grantEnv)
}

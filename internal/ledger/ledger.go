package ledger

import (
	"sync"

	"github.com/hrygo/loomchat/internal/events"
)

// Ledger holds the folded state of every grant, capability, and invite
// event on the main log. It is mutated only through Apply, so replay and
// live command application share one code path, the same determinism
// discipline as internal/tree.
type Ledger struct {
	mu      sync.Mutex
	claimMu sync.Mutex // serializes the validate-then-append sequence in Claim

	balances     map[string]map[string]int64           // userId -> currency -> amount
	capabilities map[string]map[string]capabilityState // userId -> capability -> state
	invites      map[string]*Invite                    // code -> invite
}

// New builds an empty Ledger.
func New() *Ledger {
	return &Ledger{
		balances:     make(map[string]map[string]int64),
		capabilities: make(map[string]map[string]capabilityState),
		invites:      make(map[string]*Invite),
	}
}

// Apply folds one event into ledger state. Unrecognized kinds are no-ops,
// matching the rest of the core's tolerant-replay discipline.
func (l *Ledger) Apply(env events.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch env.Type {
	case events.GrantInfo:
		var d events.GrantInfoPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		l.applyGrant(d)
	case events.GrantCapability:
		var d events.GrantCapabilityPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		l.applyCapability(d)
	case events.InviteCreated:
		var d events.InviteCreatedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		l.applyInviteCreated(d)
	case events.InviteClaimed:
		var d events.InviteClaimedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		l.applyInviteClaimed(d)
	}
	return nil
}

func (l *Ledger) applyGrant(d events.GrantInfoPayload) {
	currency := normalizeCurrency(d.Currency)
	if d.ToUserID != "" {
		l.credit(d.ToUserID, currency, d.Amount)
	}
	if d.FromUserID != "" {
		l.credit(d.FromUserID, currency, -d.Amount)
	}
}

func (l *Ledger) credit(userID, currency string, amount int64) {
	perCurrency, ok := l.balances[userID]
	if !ok {
		perCurrency = make(map[string]int64)
		l.balances[userID] = perCurrency
	}
	perCurrency[currency] += amount
}

func (l *Ledger) applyCapability(d events.GrantCapabilityPayload) {
	perCap, ok := l.capabilities[d.UserID]
	if !ok {
		perCap = make(map[string]capabilityState)
		l.capabilities[d.UserID] = perCap
	}
	perCap[d.Capability] = capabilityState{Action: d.Action, ExpiresAtMs: d.ExpiresAtMs}
}

func (l *Ledger) applyInviteCreated(d events.InviteCreatedPayload) {
	l.invites[d.Code] = &Invite{
		Code: d.Code, CreatorID: d.CreatorID, Amount: d.Amount,
		Currency: normalizeCurrency(d.Currency), ExpiresAtMs: d.ExpiresAtMs, MaxUses: d.MaxUses,
	}
}

func (l *Ledger) applyInviteClaimed(d events.InviteClaimedPayload) {
	if inv, ok := l.invites[d.Code]; ok {
		inv.UsedCount++
	}
}

// Balance returns a user's running total for a currency.
func (l *Ledger) Balance(userID, currency string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID][normalizeCurrency(currency)]
}

// HasActive evaluates whether userID currently holds capability: the
// latest action is "granted" and, if an expiry was set, now is before
// it.
func (l *Ledger) HasActive(userID, capability string, nowMs int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.capabilities[userID][capability]
	if !ok || st.Action != "granted" {
		return false
	}
	if st.ExpiresAtMs > 0 && nowMs >= st.ExpiresAtMs {
		return false
	}
	return true
}

// Invite returns the replayed state of an invite code.
func (l *Ledger) Invite(code string) (Invite, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.invites[code]
	if !ok {
		return Invite{}, false
	}
	return *inv, true
}

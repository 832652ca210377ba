// Package ledger implements the grant ledger, capability grants, and
// invite codes replayed from the main event log.
package ledger

// GrantEntry is the input to RecordGrant; Currency defaults to "credit"
// when empty and is then passed through legacy-alias normalization.
type GrantEntry struct {
	GrantType  string // mint | burn | send | tally
	Amount     int64
	Currency   string
	FromUserID string
	ToUserID   string
	Reason     string
	Details    map[string]any
}

// capabilityState is the latest known state of one (user, capability) pair.
type capabilityState struct {
	Action      string // granted | revoked
	ExpiresAtMs int64
}

// Invite is the replayed state of one invite code.
type Invite struct {
	Code        string
	CreatorID   string
	Amount      int64
	Currency    string
	ExpiresAtMs int64
	MaxUses     int
	UsedCount   int
}

func (i *Invite) expired(nowMs int64) bool {
	return i.ExpiresAtMs > 0 && nowMs >= i.ExpiresAtMs
}

func (i *Invite) exhausted() bool {
	return i.MaxUses > 0 && i.UsedCount >= i.MaxUses
}

// legacyCurrencyAliases maps legacy currency names on ingress so old
// events and new grants land in the same balance bucket.
var legacyCurrencyAliases = map[string]string{
	"opus":    "claude3opus",
	"sonnets": "old_sonnets",
}

func normalizeCurrency(currency string) string {
	if currency == "" {
		return "credit"
	}
	if alias, ok := legacyCurrencyAliases[currency]; ok {
		return alias
	}
	return currency
}

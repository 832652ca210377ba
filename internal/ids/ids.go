// Package ids mints opaque 128-bit identifiers rendered as lowercase
// hex. Entity IDs use google/uuid directly; invite codes (meant to be
// typed or read aloud) use shortuuid's shorter alphabet.
package ids

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/crypto/blake2b"
)

// ID is a lowercase-hex-rendered 128-bit identifier.
type ID string

// New mints a fresh random ID.
func New() ID {
	return ID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// RootSentinel is the reserved parentBranchId meaning "no parent".
const RootSentinel = "root"

// Valid reports whether s looks like a well-formed ID (32 lowercase hex chars).
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// NewInviteCode mints a short, human-typeable code for grant invites.
func NewInviteCode() string {
	return shortuuid.New()
}

// inviteChecksumEncoding's alphabet keeps the checksum suffix visually distinct from
// shortuuid's own alphabet and free of easily-confused characters.
var inviteChecksumEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// InviteChecksum derives a 4-character checksum for code so the claiming
// surface can reject a mistyped code before it ever reaches
// Ledger.Validate. blake2b is keyless here; it is used purely as a fast,
// well-distributed short hash, not for secrecy.
func InviteChecksum(code string) string {
	sum := blake2b.Sum256([]byte(code))
	return inviteChecksumEncoding.EncodeToString(sum[:2])
}

// VerifyInviteChecksum reports whether checksum matches code.
func VerifyInviteChecksum(code, checksum string) bool {
	return InviteChecksum(code) == checksum
}

package tree

import (
	"log/slog"

	"github.com/hrygo/loomchat/internal/ids"
)

// PathEntry is one message on an active path, paired with the branch that
// was walked to reach it.
type PathEntry struct {
	Message *Message
	Branch  *Branch
}

// WalkActivePath follows parentBranchId upward from fromBranchID until
// "root", collecting messages, then returns them root-to-leaf, the order
// a transcript or model context is read in. A missing parent halts the
// walk and is logged, never raised.
func (t *Tree) WalkActivePath(fromBranchID string) []PathEntry {
	var reversed []PathEntry // leaf-first as collected

	seen := make(map[string]bool)
	cur := fromBranchID
	for cur != "" && cur != ids.RootSentinel {
		if seen[cur] {
			slog.Warn("tree: cycle detected walking active path, stopping", "branchId", cur)
			break
		}
		seen[cur] = true

		b, ok := t.branches[cur]
		if !ok {
			slog.Warn("tree: active path references missing branch, stopping", "branchId", cur)
			break
		}
		m, ok := t.messages[b.MessageID]
		if !ok {
			slog.Warn("tree: branch owned by missing message, stopping", "branchId", cur, "messageId", b.MessageID)
			break
		}
		reversed = append(reversed, PathEntry{Message: m, Branch: b})
		cur = b.ParentBranchID
	}

	// reverse into root-to-leaf order
	out := make([]PathEntry, len(reversed))
	for i, e := range reversed {
		out[len(reversed)-1-i] = e
	}
	return out
}

// WalkActivePathFromMessage walks the active path starting at a message's
// current ActiveBranchID, the common case of "render this message's
// branch of the conversation".
func (t *Tree) WalkActivePathFromMessage(messageID string) []PathEntry {
	m, ok := t.messages[messageID]
	if !ok {
		return nil
	}
	return t.WalkActivePath(m.ActiveBranchID)
}

// BranchSignature concatenates branch IDs along a path, used by the
// context engine to detect a branch change between prompt preparations.
func BranchSignature(path []PathEntry) string {
	var sig string
	for _, e := range path {
		sig += e.Branch.ID
	}
	return sig
}

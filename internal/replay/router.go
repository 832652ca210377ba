// Package replay folds event logs into live in-memory state. It owns the
// router that categorizes an event to its log (falling back to the main
// log when a conversation/user ID can't be resolved), startup
// unknown-kind counting, and the user-flags projection. The message-tree
// and conversation-state folds themselves live next to the state they
// produce (internal/tree.Apply, internal/convstate), so replay and live
// command application share one Apply path.
package replay

import (
	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/events"
)

// ResolveLogID routes an event to its log during migration or import:
// events referencing a known conversation or user resolve to that log;
// when neither resolves, the event falls back to the main log so nothing
// is lost.
func ResolveLogID(kind events.Kind, conversationID, userID string) eventlog.LogID {
	category, known := events.CategoryOf(kind)
	if !known {
		return eventlog.Main()
	}
	switch category {
	case events.CategoryConversation:
		if conversationID != "" {
			return eventlog.Conversation(conversationID)
		}
		return eventlog.Main()
	case events.CategoryUser:
		if userID != "" {
			return eventlog.User(userID)
		}
		return eventlog.Main()
	default:
		return eventlog.Main()
	}
}

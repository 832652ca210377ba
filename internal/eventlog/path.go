package eventlog

import (
	"fmt"
	"path/filepath"

	"github.com/hrygo/loomchat/internal/events"
)

// LogID identifies one append-only log. Category selects the path policy;
// Key is the conversation ID for conversation logs, the user ID for user
// logs, and ignored for the single main log.
type LogID struct {
	Category events.Category
	Key      string
}

// Main is the well-known ID of the single global main log.
func Main() LogID { return LogID{Category: events.CategoryMain} }

// Conversation identifies a per-conversation log.
func Conversation(conversationID string) LogID {
	return LogID{Category: events.CategoryConversation, Key: conversationID}
}

// User identifies a per-user log.
func User(userID string) LogID {
	return LogID{Category: events.CategoryUser, Key: userID}
}

func (id LogID) String() string {
	return fmt.Sprintf("%s:%s", id.Category, id.Key)
}

// path implements the on-disk sharding policy:
//
//	<base>/events.jsonl                       (main)
//	<base>/users/<aa>/<userId>.jsonl           (per-user)
//	<base>/conversations/<aa>/<bb>/<id>.jsonl  (per-conversation)
//
// The engine must use this exact sharding scheme so the compactor and any
// offline repair tool can find files predictably from the ID alone.
func path(baseDir string, id LogID) (string, error) {
	switch id.Category {
	case events.CategoryMain:
		return filepath.Join(baseDir, "events.jsonl"), nil
	case events.CategoryUser:
		if len(id.Key) < 2 {
			return "", fmt.Errorf("eventlog: user id %q too short to shard", id.Key)
		}
		return filepath.Join(baseDir, "users", id.Key[:2], id.Key+".jsonl"), nil
	case events.CategoryConversation:
		if len(id.Key) < 4 {
			return "", fmt.Errorf("eventlog: conversation id %q too short to shard", id.Key)
		}
		return filepath.Join(baseDir, "conversations", id.Key[:2], id.Key[2:4], id.Key+".jsonl"), nil
	default:
		return "", fmt.Errorf("eventlog: unknown log category %q", id.Category)
	}
}

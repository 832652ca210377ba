// Package tree implements the branched message model: an arena of
// Branches per conversation, Messages that point at an active Branch, a
// total order used for default rendering, and the operations
// (create/edit/regenerate/split/delete/setActiveBranch) that mutate the
// tree via events while keeping it an acyclic forest with unique,
// parent-before-child order values.
//
// Branch IDs are only meaningful within one conversation, so branches are
// held in an arena: a map from branch ID to *Branch, scoped to one
// conversation's Tree. Nothing here holds a raw cross-conversation
// reference.
package tree

import (
	"time"

	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/ids"
)

// Role is a branch's speaker role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Attachment is a reference to out-of-band content (an image, a file) tied
// to a branch. The blob itself lives in internal/blobstore.
type Attachment struct {
	ID       string `json:"id"`
	BlobID   string `json:"blobId"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
}

// Branch is one concrete utterance variant of a message.
type Branch struct {
	ID               string
	MessageID        string // owning message, kept for arena integrity checks
	ParentBranchID   string // "root" sentinel, or another branch's ID
	Role             Role
	Content          string
	ContentBlocks    []events.ContentBlock
	Attachments      []Attachment
	ParticipantID    string
	Model            string
	CreatedAt        time.Time
	ThoughtSignature string
}

// Message is a node in the conversation tree.
type Message struct {
	ID             string
	ConversationID string
	Order          int64
	BranchIDs      []string // insertion order
	ActiveBranchID string
}

// Tree holds the full branch arena and message set for one conversation.
// Every event-driven change goes through Apply, so replay and live command
// application go through the exact same code path. The one exception is
// RepairActiveBranch, which heals an invalid active branch in memory
// without emitting an event. Reads go through WalkActivePath and the
// accessors.
type Tree struct {
	ConversationID string

	messages  map[string]*Message
	branches  map[string]*Branch
	nextOrder int64
}

// New creates an empty Tree for a conversation.
func New(conversationID string) *Tree {
	return &Tree{
		ConversationID: conversationID,
		messages:       make(map[string]*Message),
		branches:       make(map[string]*Branch),
	}
}

// Appender durably persists one event before it is folded into memory.
// The write path is: plan -> Appender(env) -> Apply(env).
type Appender func(events.Envelope) error

// Message looks up a message by ID.
func (t *Tree) Message(id string) (*Message, bool) {
	m, ok := t.messages[id]
	return m, ok
}

// Branch looks up a branch by ID.
func (t *Tree) Branch(id string) (*Branch, bool) {
	b, ok := t.branches[id]
	return b, ok
}

// Messages returns every message, unordered. Callers that need rendering
// order should sort by Order or use WalkActivePath.
func (t *Tree) Messages() []*Message {
	out := make([]*Message, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, m)
	}
	return out
}

func (t *Tree) nextMessageOrder() int64 {
	o := t.nextOrder
	t.nextOrder++
	return o
}

// resolveParent reports whether parentBranchID is either the root sentinel
// or a branch that exists in this tree's arena.
func (t *Tree) resolveParent(parentBranchID string) bool {
	if parentBranchID == "" || parentBranchID == ids.RootSentinel {
		return true
	}
	_, ok := t.branches[parentBranchID]
	return ok
}

// Package events defines the closed event-kind set, the on-disk envelope,
// and typed payloads for each kind. Event payloads are parsed into these
// typed values at the log boundary so everything downstream of a log read
// works with concrete Go structs instead of untyped JSON.
package events

// Kind is one of the closed tag set of event types.
type Kind string

// Main log kinds.
const (
	UserCreated       Kind = "user_created"
	UserUpdated       Kind = "user_updated"
	UserEmailVerified Kind = "user_email_verified"
	PasswordReset     Kind = "password_reset"
	APIKeyCreated     Kind = "api_key_created"
	APIKeyRevoked     Kind = "api_key_revoked"
	ShareCreated      Kind = "share_created"
	ShareDeleted      Kind = "share_deleted"
	ShareViewed       Kind = "share_viewed"
	InviteCreated     Kind = "invite_created"
	InviteClaimed     Kind = "invite_claimed"
	GrantInfo         Kind = "grant_info"
	GrantCapability   Kind = "grant_capability"
	UserAgeVerified   Kind = "user_age_verified"
	UserTOSAccepted   Kind = "user_tos_accepted"
)

// Per-user log kinds.
const (
	ConversationCreated  Kind = "conversation_created"
	ConversationUpdated  Kind = "conversation_updated"
	ConversationArchived Kind = "conversation_archived"
	ParticipantCreated   Kind = "participant_created"
	ParticipantUpdated   Kind = "participant_updated"
	ParticipantDeleted   Kind = "participant_deleted"
	CollabShareCreated   Kind = "collab_share_created"
	CollabShareUpdated   Kind = "collab_share_updated"
	CollabShareRevoked   Kind = "collab_share_revoked"
	MetricsAdded         Kind = "metrics_added"
)

// Per-conversation log kinds.
const (
	MessageCreated       Kind = "message_created"
	MessageBranchAdded   Kind = "message_branch_added"
	MessageBranchUpdated Kind = "message_branch_updated"
	ActiveBranchChanged  Kind = "active_branch_changed"
	MessageOrderChanged  Kind = "message_order_changed"
	MessageDeleted       Kind = "message_deleted"
)

// Category is the log family a kind is routed to.
type Category string

const (
	CategoryMain         Category = "main"
	CategoryUser         Category = "user"
	CategoryConversation Category = "conversation"
	CategoryUnknown      Category = "unknown"
)

var categoryByKind = map[Kind]Category{
	UserCreated:       CategoryMain,
	UserUpdated:       CategoryMain,
	UserEmailVerified: CategoryMain,
	PasswordReset:     CategoryMain,
	APIKeyCreated:     CategoryMain,
	APIKeyRevoked:     CategoryMain,
	ShareCreated:      CategoryMain,
	ShareDeleted:      CategoryMain,
	ShareViewed:       CategoryMain,
	InviteCreated:     CategoryMain,
	InviteClaimed:     CategoryMain,
	GrantInfo:         CategoryMain,
	GrantCapability:   CategoryMain,
	UserAgeVerified:   CategoryMain,
	UserTOSAccepted:   CategoryMain,

	ConversationCreated:  CategoryUser,
	ConversationUpdated:  CategoryUser,
	ConversationArchived: CategoryUser,
	ParticipantCreated:   CategoryUser,
	ParticipantUpdated:   CategoryUser,
	ParticipantDeleted:   CategoryUser,
	CollabShareCreated:   CategoryUser,
	CollabShareUpdated:   CategoryUser,
	CollabShareRevoked:   CategoryUser,
	MetricsAdded:         CategoryUser,

	MessageCreated:       CategoryConversation,
	MessageBranchAdded:   CategoryConversation,
	MessageBranchUpdated: CategoryConversation,
	ActiveBranchChanged:  CategoryConversation,
	MessageOrderChanged:  CategoryConversation,
	MessageDeleted:       CategoryConversation,
}

// CategoryOf returns the log category a kind routes to, and false for an
// unrecognized kind (the router then falls back to the main log so that
// nothing is lost).
func CategoryOf(k Kind) (Category, bool) {
	c, ok := categoryByKind[k]
	return c, ok
}

// ReconstructableFromState reports whether a conversation-log kind can be
// dropped by the compactor because replay state already captures it:
// active_branch_changed and message_order_changed only ever restate
// derivable fields of Message/Branch.
func ReconstructableFromState(k Kind) bool {
	return k == ActiveBranchChanged || k == MessageOrderChanged
}

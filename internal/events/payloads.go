package events

// ContentBlock is the canonical message content representation: legacy
// string content is mapped to a single {type: "text"} block at the
// boundary, so everything past the event layer only ever sees
// ContentBlocks.
type ContentBlock struct {
	Type      string `json:"type"` // text | image | thinking
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	CacheCtrl bool   `json:"cacheControl,omitempty"` // ephemeral cache-anchor marker
}

// TextBlocks wraps a plain string as the canonical single-block form.
func TextBlocks(s string) []ContentBlock {
	if s == "" {
		return nil
	}
	return []ContentBlock{{Type: "text", Text: s}}
}

// --- Conversation lifecycle (user log) ---

type ConversationCreatedPayload struct {
	ConversationID string         `json:"conversationId"`
	OwnerID        string         `json:"ownerId"`
	Title          string         `json:"title"`
	SystemPrompt   string         `json:"systemPrompt,omitempty"`
	DefaultModelID string         `json:"defaultModelId,omitempty"`
	Format         string         `json:"format"` // standard | prefill
	ContextConfig  map[string]any `json:"contextConfig,omitempty"`
}

type ConversationUpdatedPayload struct {
	ConversationID string         `json:"conversationId"`
	Title          *string        `json:"title,omitempty"`
	SystemPrompt   *string        `json:"systemPrompt,omitempty"`
	DefaultModelID *string        `json:"defaultModelId,omitempty"`
	ContextConfig  map[string]any `json:"contextConfig,omitempty"`
}

type ConversationArchivedPayload struct {
	ConversationID string `json:"conversationId"`
}

type ParticipantCreatedPayload struct {
	ParticipantID     string         `json:"participantId"`
	ConversationID    string         `json:"conversationId"`
	Name              string         `json:"name"`
	Kind              string         `json:"kind"` // user | assistant
	ModelID           string         `json:"modelId,omitempty"`
	SystemPrompt      string         `json:"systemPrompt,omitempty"`
	Settings          map[string]any `json:"settings,omitempty"`
	ContextManagement map[string]any `json:"contextManagement,omitempty"`
	IsActive          bool           `json:"isActive"`
}

type ParticipantUpdatedPayload struct {
	ParticipantID string         `json:"participantId"`
	Name          *string        `json:"name,omitempty"`
	ModelID       *string        `json:"modelId,omitempty"`
	SystemPrompt  *string        `json:"systemPrompt,omitempty"`
	Settings      map[string]any `json:"settings,omitempty"`
	IsActive      *bool          `json:"isActive,omitempty"`
}

type ParticipantDeletedPayload struct {
	ParticipantID string `json:"participantId"`
}

type MetricsAddedPayload struct {
	ConversationID   string `json:"conversationId"`
	MessageID        string `json:"messageId"`
	BranchID         string `json:"branchId"`
	ProfileID        string `json:"profileId"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	CostMilliCents   int64  `json:"costMilliCents"`
	Currency         string `json:"currency,omitempty"`
	LatencyMs        int64  `json:"latencyMs"`
	Failed           bool   `json:"failed,omitempty"`
}

// --- Message tree (conversation log) ---

type MessageCreatedPayload struct {
	MessageID      string         `json:"messageId"`
	ConversationID string         `json:"conversationId"`
	Order          int64          `json:"order"`
	BranchID       string         `json:"branchId"`
	ParentBranchID string         `json:"parentBranchId"`
	Role           string         `json:"role"`
	Content        string         `json:"content,omitempty"`
	ContentBlocks  []ContentBlock `json:"contentBlocks,omitempty"`
	ParticipantID  string         `json:"participantId,omitempty"`
	Model          string         `json:"model,omitempty"`
	CreatedAtMs    int64          `json:"createdAtMs"`
}

type MessageBranchAddedPayload struct {
	MessageID      string         `json:"messageId"`
	BranchID       string         `json:"branchId"`
	ParentBranchID string         `json:"parentBranchId"`
	Role           string         `json:"role"`
	Content        string         `json:"content,omitempty"`
	ContentBlocks  []ContentBlock `json:"contentBlocks,omitempty"`
	ParticipantID  string         `json:"participantId,omitempty"`
	Model          string         `json:"model,omitempty"`
	CreatedAtMs    int64          `json:"createdAtMs"`
}

// MessageBranchUpdatedPayload updates an existing branch in place: terminal
// streamed content, debug captures, or a re-root (ParentBranchID set to the
// root sentinel when the branch's parent message was deleted).
type MessageBranchUpdatedPayload struct {
	MessageID         string         `json:"messageId"`
	BranchID          string         `json:"branchId"`
	ParentBranchID    string         `json:"parentBranchId,omitempty"`
	Content           string         `json:"content,omitempty"`
	ContentBlocks     []ContentBlock `json:"contentBlocks,omitempty"`
	ThoughtSignature  string         `json:"thoughtSignature,omitempty"`
	DebugRequest      map[string]any `json:"debugRequest,omitempty"`
	DebugResponse     map[string]any `json:"debugResponse,omitempty"`
	DebugRequestBlob  string         `json:"debugRequestBlobId,omitempty"`
	DebugResponseBlob string         `json:"debugResponseBlobId,omitempty"`
}

type ActiveBranchChangedPayload struct {
	MessageID string `json:"messageId"`
	BranchID  string `json:"branchId"`
}

// MessageOrderChangedPayload is emitted once per renumbered message. A
// bulk repair emits one of these per affected message.
type MessageOrderChangedPayload struct {
	MessageID string `json:"messageId"`
	NewOrder  int64  `json:"newOrder"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// --- Grant ledger (main log) ---

type GrantInfoPayload struct {
	EntryID    string         `json:"entryId"`
	GrantType  string         `json:"type"` // mint | burn | send | tally
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency,omitempty"`
	FromUserID string         `json:"fromUserId,omitempty"`
	ToUserID   string         `json:"toUserId,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

type GrantCapabilityPayload struct {
	EntryID     string `json:"entryId"`
	UserID      string `json:"userId"`
	Action      string `json:"action"` // granted | revoked
	Capability  string `json:"capability"`
	ExpiresAtMs int64  `json:"expiresAtMs,omitempty"`
}

type InviteCreatedPayload struct {
	Code        string `json:"code"`
	CreatorID   string `json:"creatorId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ExpiresAtMs int64  `json:"expiresAtMs,omitempty"`
	MaxUses     int    `json:"maxUses,omitempty"`
}

type InviteClaimedPayload struct {
	Code      string `json:"code"`
	ClaimerID string `json:"claimerId"`
}

// --- User account lifecycle (main log) ---

type UserCreatedPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type UserUpdatedPayload struct {
	UserID string  `json:"userId"`
	Name   *string `json:"name,omitempty"`
}

type PasswordResetPayload struct {
	UserID    string `json:"userId"`
	ResetAtMs int64  `json:"resetAtMs"`
}

type UserAgeVerifiedPayload struct {
	UserID       string `json:"userId"`
	VerifiedAtMs int64  `json:"verifiedAtMs"`
}

type UserTOSAcceptedPayload struct {
	UserID     string `json:"userId"`
	TOSVersion string `json:"tosVersion"`
	AcceptedMs int64  `json:"acceptedMs"`
}

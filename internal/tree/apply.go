package tree

import (
	"log/slog"
	"time"

	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/ids"
)

// Apply folds one conversation-log event into the tree. It is the single
// place events mutate state, used identically by live command application
// and by pure replay. Apply never returns an error for domain-level
// oddities it can repair; it records a warning and heals state. It only
// errors when an event's data does not decode into its kind's payload
// type; Load checks only the envelope's JSON, so that error stops the
// Load replaying the log.
func (t *Tree) Apply(env events.Envelope) error {
	switch env.Type {
	case events.MessageCreated:
		var p events.MessageCreatedPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		t.applyMessageCreated(p)

	case events.MessageBranchAdded:
		var p events.MessageBranchAddedPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		t.applyBranchAdded(p)

	case events.MessageBranchUpdated:
		var p events.MessageBranchUpdatedPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		t.applyBranchUpdated(p)

	case events.ActiveBranchChanged:
		var p events.ActiveBranchChangedPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		t.applyActiveBranchChanged(p)

	case events.MessageOrderChanged:
		var p events.MessageOrderChangedPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		t.applyOrderChanged(p)

	case events.MessageDeleted:
		var p events.MessageDeletedPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		t.applyMessageDeleted(p)

	default:
		// Unknown kinds are silently ignored for forward compatibility.
	}
	return nil
}

func (t *Tree) applyMessageCreated(p events.MessageCreatedPayload) {
	if !t.resolveParent(p.ParentBranchID) {
		slog.Warn("tree: message_created with unresolved parent, re-rooting", "messageId", p.MessageID, "parent", p.ParentBranchID)
		p.ParentBranchID = ids.RootSentinel
	}
	blocks := p.ContentBlocks
	if blocks == nil {
		blocks = events.TextBlocks(p.Content)
	}
	b := &Branch{
		ID:             p.BranchID,
		MessageID:      p.MessageID,
		ParentBranchID: p.ParentBranchID,
		Role:           Role(p.Role),
		Content:        p.Content,
		ContentBlocks:  blocks,
		ParticipantID:  p.ParticipantID,
		Model:          p.Model,
		CreatedAt:      time.UnixMilli(p.CreatedAtMs).UTC(),
	}
	t.branches[b.ID] = b
	m := &Message{
		ID:             p.MessageID,
		ConversationID: t.ConversationID,
		Order:          p.Order,
		BranchIDs:      []string{b.ID},
		ActiveBranchID: b.ID,
	}
	t.messages[m.ID] = m
	if p.Order >= t.nextOrder {
		t.nextOrder = p.Order + 1
	}
}

func (t *Tree) applyBranchAdded(p events.MessageBranchAddedPayload) {
	m, ok := t.messages[p.MessageID]
	if !ok {
		slog.Warn("tree: message_branch_added for unknown message", "messageId", p.MessageID)
		return
	}
	if !t.resolveParent(p.ParentBranchID) {
		slog.Warn("tree: message_branch_added with unresolved parent, re-rooting", "branchId", p.BranchID, "parent", p.ParentBranchID)
		p.ParentBranchID = ids.RootSentinel
	}
	blocks := p.ContentBlocks
	if blocks == nil {
		blocks = events.TextBlocks(p.Content)
	}
	b := &Branch{
		ID:             p.BranchID,
		MessageID:      p.MessageID,
		ParentBranchID: p.ParentBranchID,
		Role:           Role(p.Role),
		Content:        p.Content,
		ContentBlocks:  blocks,
		ParticipantID:  p.ParticipantID,
		Model:          p.Model,
		CreatedAt:      time.UnixMilli(p.CreatedAtMs).UTC(),
	}
	t.branches[b.ID] = b
	m.BranchIDs = append(m.BranchIDs, b.ID)
}

func (t *Tree) applyBranchUpdated(p events.MessageBranchUpdatedPayload) {
	b, ok := t.branches[p.BranchID]
	if !ok {
		slog.Warn("tree: message_branch_updated for unknown branch", "branchId", p.BranchID)
		return
	}
	if p.ParentBranchID != "" {
		if t.resolveParent(p.ParentBranchID) {
			b.ParentBranchID = p.ParentBranchID
		} else {
			slog.Warn("tree: message_branch_updated to unresolved parent, ignoring", "branchId", p.BranchID, "parent", p.ParentBranchID)
		}
	}
	if p.Content != "" || p.ContentBlocks != nil {
		b.Content = p.Content
		if p.ContentBlocks != nil {
			b.ContentBlocks = p.ContentBlocks
		} else {
			b.ContentBlocks = events.TextBlocks(p.Content)
		}
	}
	if p.ThoughtSignature != "" {
		b.ThoughtSignature = p.ThoughtSignature
	}
}

func (t *Tree) applyActiveBranchChanged(p events.ActiveBranchChangedPayload) {
	m, ok := t.messages[p.MessageID]
	if !ok {
		slog.Warn("tree: active_branch_changed for unknown message", "messageId", p.MessageID)
		return
	}
	if !containsString(m.BranchIDs, p.BranchID) {
		slog.Warn("tree: active_branch_changed to unknown branch, ignoring", "messageId", p.MessageID, "branchId", p.BranchID)
		return
	}
	m.ActiveBranchID = p.BranchID
}

func (t *Tree) applyOrderChanged(p events.MessageOrderChangedPayload) {
	m, ok := t.messages[p.MessageID]
	if !ok {
		slog.Warn("tree: message_order_changed for unknown message", "messageId", p.MessageID)
		return
	}
	m.Order = p.NewOrder
	if p.NewOrder >= t.nextOrder {
		t.nextOrder = p.NewOrder + 1
	}
}

func (t *Tree) applyMessageDeleted(p events.MessageDeletedPayload) {
	m, ok := t.messages[p.MessageID]
	if !ok {
		return
	}
	branchSet := make(map[string]bool, len(m.BranchIDs))
	for _, bid := range m.BranchIDs {
		branchSet[bid] = true
		delete(t.branches, bid)
	}
	delete(t.messages, m.ID)

	// Re-root any branch whose parent was one of the deleted message's
	// branches, so no orphan references a vanished branch. Live deletes
	// emit the re-roots as message_branch_updated events ahead of the
	// delete; this covers logs written before they existed.
	for _, b := range t.branches {
		if branchSet[b.ParentBranchID] {
			b.ParentBranchID = ids.RootSentinel
		}
	}
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// RepairActiveBranch fixes a message whose ActiveBranchID is not among
// its branches: it promotes the branch with the largest CreatedAt. It
// returns the promoted branch ID and whether a repair was needed at all.
func (t *Tree) RepairActiveBranch(messageID string) (string, bool) {
	m, ok := t.messages[messageID]
	if !ok {
		return "", false
	}
	if containsString(m.BranchIDs, m.ActiveBranchID) {
		return m.ActiveBranchID, false
	}
	var newest string
	var newestAt time.Time
	for _, bid := range m.BranchIDs {
		b := t.branches[bid]
		if b == nil {
			continue
		}
		if newest == "" || b.CreatedAt.After(newestAt) {
			newest = bid
			newestAt = b.CreatedAt
		}
	}
	slog.Warn("tree: active branch not among message branches, promoting newest", "messageId", messageID, "activeBranchId", m.ActiveBranchID, "promoted", newest)
	if newest != "" {
		m.ActiveBranchID = newest
	}
	return newest, true
}

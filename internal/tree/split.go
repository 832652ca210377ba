package tree

import (
	"sort"
	"time"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/ids"
)

// appendMsg is builtin append under a different name, needed because
// SplitMessage's Appender parameter is named "append" and shadows the builtin.
func appendMsg(s []*Message, m *Message) []*Message { return append(s, m) }

// SplitMessage splits the active branch of messageID into two contiguous
// messages at offset, preserving parentBranchId chains, and emits
// message_order_changed for every message whose order shifts to make
// room, so a replay of the log lands on the same ordering.
//
// The first half keeps messageID's identity and branch ID (its content is
// truncated in place via message_branch_updated). The second half is a new
// message inserted immediately after it, whose branch's parent is the
// first half's (now-truncated) branch, and any existing child of the
// original branch is reparented onto the new second-half branch.
// Reparenting adds a new branch (same content) under the new parent and
// flips the child message's active branch to it; the child's original
// branch is left unchanged.
func (t *Tree) SplitMessage(append Appender, now time.Time, messageID string, offset int) (*Message, *Message, error) {
	m, ok := t.messages[messageID]
	if !ok {
		return nil, nil, errs.New(errs.NotFound, "message not found: "+messageID)
	}
	b, ok := t.branches[m.ActiveBranchID]
	if !ok {
		return nil, nil, errs.New(errs.Internal, "active branch missing for message: "+messageID)
	}
	if offset < 0 || offset > len(b.Content) {
		return nil, nil, errs.New(errs.Validation, "split offset out of range")
	}

	part1, part2 := b.Content[:offset], b.Content[offset:]
	originalOrder := m.Order

	// 1. Shift every later message's order up by one, highest-order first
	// so no two messages transiently share an order value.
	toShift := make([]*Message, 0)
	for _, other := range t.messages {
		if other.ID != messageID && other.Order > originalOrder {
			toShift = appendMsg(toShift, other)
		}
	}
	sort.Slice(toShift, func(i, j int) bool { return toShift[i].Order > toShift[j].Order })
	for _, other := range toShift {
		newOrder := other.Order + 1
		env, err := events.New(now, events.MessageOrderChanged, events.MessageOrderChangedPayload{MessageID: other.ID, NewOrder: newOrder})
		if err != nil {
			return nil, nil, errs.Wrap(err, errs.Internal, "encode message_order_changed")
		}
		if err := append(env); err != nil {
			return nil, nil, err
		}
		if err := t.Apply(env); err != nil {
			return nil, nil, err
		}
	}

	// 2. Truncate the first half in place.
	if err := t.UpdateBranchContent(append, now, messageID, b.ID, part1, events.TextBlocks(part1), ""); err != nil {
		return nil, nil, err
	}

	// 3. Create the second half as a new message immediately after.
	newMsgID := string(ids.New())
	newBranchID := string(ids.New())
	order2 := originalOrder + 1
	createPayload := events.MessageCreatedPayload{
		MessageID:      newMsgID,
		ConversationID: t.ConversationID,
		Order:          order2,
		BranchID:       newBranchID,
		ParentBranchID: b.ID,
		Role:           string(b.Role),
		Content:        part2,
		ContentBlocks:  events.TextBlocks(part2),
		ParticipantID:  b.ParticipantID,
		Model:          b.Model,
		CreatedAtMs:    now.UnixMilli(),
	}
	createEnv, err := events.New(now, events.MessageCreated, createPayload)
	if err != nil {
		return nil, nil, errs.Wrap(err, errs.Internal, "encode message_created")
	}
	if err := append(createEnv); err != nil {
		return nil, nil, err
	}
	if err := t.Apply(createEnv); err != nil {
		return nil, nil, err
	}

	// 4. Reparent direct children of the original (now-truncated) branch
	// onto the new second-half branch.
	for _, child := range t.childMessagesOf(b.ID, newMsgID) {
		childBranch, ok := t.branches[child.ActiveBranchID]
		if !ok {
			continue
		}
		clonedID := string(ids.New())
		addPayload := events.MessageBranchAddedPayload{
			MessageID:      child.ID,
			BranchID:       clonedID,
			ParentBranchID: newBranchID,
			Role:           string(childBranch.Role),
			Content:        childBranch.Content,
			ContentBlocks:  childBranch.ContentBlocks,
			ParticipantID:  childBranch.ParticipantID,
			Model:          childBranch.Model,
			CreatedAtMs:    now.UnixMilli(),
		}
		addEnv, err := events.New(now, events.MessageBranchAdded, addPayload)
		if err != nil {
			return nil, nil, errs.Wrap(err, errs.Internal, "encode message_branch_added")
		}
		if err := append(addEnv); err != nil {
			return nil, nil, err
		}
		if err := t.Apply(addEnv); err != nil {
			return nil, nil, err
		}
		activeEnv, err := events.New(now, events.ActiveBranchChanged, events.ActiveBranchChangedPayload{MessageID: child.ID, BranchID: clonedID})
		if err != nil {
			return nil, nil, errs.Wrap(err, errs.Internal, "encode active_branch_changed")
		}
		if err := append(activeEnv); err != nil {
			return nil, nil, err
		}
		if err := t.Apply(activeEnv); err != nil {
			return nil, nil, err
		}
	}

	return t.messages[messageID], t.messages[newMsgID], nil
}

// childMessagesOf returns messages (other than exclude) whose active
// branch's parent is parentBranchID.
func (t *Tree) childMessagesOf(parentBranchID, exclude string) []*Message {
	var out []*Message
	for _, m := range t.messages {
		if m.ID == exclude {
			continue
		}
		if ab, ok := t.branches[m.ActiveBranchID]; ok && ab.ParentBranchID == parentBranchID {
			out = append(out, m)
		}
	}
	return out
}

// RepairOrdering renumbers every message densely (0, 1, 2, ...) in the
// sequence of their current Order values, emitting message_order_changed
// only for messages whose order actually changes. It exists as the
// one-shot migration pass for logs written by older builds whose split
// operation renumbered messages without recording the new orders. It does
// not consult the branch tree: messages keep their current relative order
// even where a child sorts before its parent, and messages that share an
// order value are renumbered in an unspecified relative order.
func (t *Tree) RepairOrdering(append Appender, now time.Time) (int, error) {
	all := t.Messages()
	sort.Slice(all, func(i, j int) bool { return all[i].Order < all[j].Order })

	changed := 0
	var next int64
	for _, m := range all {
		want := next
		next++
		if m.Order == want {
			continue
		}
		env, err := events.New(now, events.MessageOrderChanged, events.MessageOrderChangedPayload{MessageID: m.ID, NewOrder: want})
		if err != nil {
			return changed, errs.Wrap(err, errs.Internal, "encode message_order_changed")
		}
		if err := append(env); err != nil {
			return changed, err
		}
		if err := t.Apply(env); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

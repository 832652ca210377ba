package tree

import (
	"time"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/ids"
)

// CreateMessage assigns order = max(order)+1, creates a single branch with
// parentBranchId = parent (or root), and durably emits message_created
// before applying it to the in-memory tree.
func (t *Tree) CreateMessage(append Appender, now time.Time, role Role, content string, blocks []events.ContentBlock, parentBranchID, participantID, model string) (*Message, *Branch, error) {
	if parentBranchID == "" {
		parentBranchID = ids.RootSentinel
	}
	if !t.resolveParent(parentBranchID) {
		return nil, nil, errs.New(errs.Validation, "createMessage: parent branch not found: "+parentBranchID)
	}

	msgID := string(ids.New())
	branchID := string(ids.New())
	order := t.nextMessageOrder()

	payload := events.MessageCreatedPayload{
		MessageID:      msgID,
		ConversationID: t.ConversationID,
		Order:          order,
		BranchID:       branchID,
		ParentBranchID: parentBranchID,
		Role:           string(role),
		Content:        content,
		ContentBlocks:  blocks,
		ParticipantID:  participantID,
		Model:          model,
		CreatedAtMs:    now.UnixMilli(),
	}
	env, err := events.New(now, events.MessageCreated, payload)
	if err != nil {
		return nil, nil, errs.Wrap(err, errs.Internal, "encode message_created")
	}
	if err := append(env); err != nil {
		t.nextOrder-- // the order slot was never consumed
		return nil, nil, err
	}
	if err := t.Apply(env); err != nil {
		return nil, nil, err
	}
	m := t.messages[msgID]
	b := t.branches[branchID]
	return m, b, nil
}

// EditMessage creates a new branch with the same parent as the current
// active branch, appends it to the message, and flips the active branch to
// it.
func (t *Tree) EditMessage(append Appender, now time.Time, messageID, newContent string, blocks []events.ContentBlock) (*Branch, error) {
	return t.branchFrom(append, now, messageID, newContent, blocks)
}

// Regenerate is EditMessage with empty content; a later streaming
// completion fills the branch via message_branch_updated.
func (t *Tree) Regenerate(append Appender, now time.Time, messageID string) (*Branch, error) {
	return t.branchFrom(append, now, messageID, "", nil)
}

func (t *Tree) branchFrom(append Appender, now time.Time, messageID, content string, blocks []events.ContentBlock) (*Branch, error) {
	m, ok := t.messages[messageID]
	if !ok {
		return nil, errs.New(errs.NotFound, "message not found: "+messageID)
	}
	cur, ok := t.branches[m.ActiveBranchID]
	if !ok {
		return nil, errs.New(errs.Internal, "active branch missing for message: "+messageID)
	}

	newBranchID := string(ids.New())
	addPayload := events.MessageBranchAddedPayload{
		MessageID:      messageID,
		BranchID:       newBranchID,
		ParentBranchID: cur.ParentBranchID,
		Role:           string(cur.Role),
		Content:        content,
		ContentBlocks:  blocks,
		ParticipantID:  cur.ParticipantID,
		Model:          cur.Model,
		CreatedAtMs:    now.UnixMilli(),
	}
	addEnv, err := events.New(now, events.MessageBranchAdded, addPayload)
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "encode message_branch_added")
	}
	if err := append(addEnv); err != nil {
		return nil, err
	}
	if err := t.Apply(addEnv); err != nil {
		return nil, err
	}

	activePayload := events.ActiveBranchChangedPayload{MessageID: messageID, BranchID: newBranchID}
	activeEnv, err := events.New(now, events.ActiveBranchChanged, activePayload)
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "encode active_branch_changed")
	}
	if err := append(activeEnv); err != nil {
		return nil, err
	}
	if err := t.Apply(activeEnv); err != nil {
		return nil, err
	}

	return t.branches[newBranchID], nil
}

// UpdateBranchContent emits message_branch_updated. The streaming driver
// uses it to persist the terminal content of a branch.
func (t *Tree) UpdateBranchContent(append Appender, now time.Time, messageID, branchID, content string, blocks []events.ContentBlock, thoughtSignature string) error {
	if _, ok := t.branches[branchID]; !ok {
		return errs.New(errs.NotFound, "branch not found: "+branchID)
	}
	payload := events.MessageBranchUpdatedPayload{
		MessageID:        messageID,
		BranchID:         branchID,
		Content:          content,
		ContentBlocks:    blocks,
		ThoughtSignature: thoughtSignature,
	}
	env, err := events.New(now, events.MessageBranchUpdated, payload)
	if err != nil {
		return errs.Wrap(err, errs.Internal, "encode message_branch_updated")
	}
	if err := append(env); err != nil {
		return err
	}
	return t.Apply(env)
}

// SetActiveBranch validates that branchID belongs to message's branch set
// and, on success, emits active_branch_changed. On an unknown branch it
// does not error; instead it promotes the branch with the largest
// CreatedAt and emits active_branch_changed for the repaired value so the
// repair itself is durable.
func (t *Tree) SetActiveBranch(append Appender, now time.Time, messageID, branchID string) (string, error) {
	m, ok := t.messages[messageID]
	if !ok {
		return "", errs.New(errs.NotFound, "message not found: "+messageID)
	}

	target := branchID
	if !containsString(m.BranchIDs, branchID) {
		target = ""
		var newestAt time.Time
		for _, bid := range m.BranchIDs {
			if b := t.branches[bid]; b != nil && (target == "" || b.CreatedAt.After(newestAt)) {
				target, newestAt = bid, b.CreatedAt
			}
		}
		if target == "" {
			return "", errs.New(errs.NotFound, "branch not found and no branch to repair to: "+branchID)
		}
	}

	env, err := events.New(now, events.ActiveBranchChanged, events.ActiveBranchChangedPayload{MessageID: messageID, BranchID: target})
	if err != nil {
		return "", errs.Wrap(err, errs.Internal, "encode active_branch_changed")
	}
	if err := append(env); err != nil {
		return "", err
	}
	if err := t.Apply(env); err != nil {
		return "", err
	}
	return target, nil
}

// DeleteMessage re-roots every branch whose parent resolves into the
// doomed message's branches (one message_branch_updated per orphan, so
// the re-root survives replay on its own), then removes the message via
// message_deleted.
func (t *Tree) DeleteMessage(append Appender, now time.Time, messageID string) error {
	m, ok := t.messages[messageID]
	if !ok {
		return errs.New(errs.NotFound, "message not found: "+messageID)
	}

	doomed := make(map[string]bool, len(m.BranchIDs))
	for _, bid := range m.BranchIDs {
		doomed[bid] = true
	}
	for _, b := range t.branches {
		if b.MessageID == messageID || !doomed[b.ParentBranchID] {
			continue
		}
		payload := events.MessageBranchUpdatedPayload{
			MessageID:      b.MessageID,
			BranchID:       b.ID,
			ParentBranchID: ids.RootSentinel,
		}
		env, err := events.New(now, events.MessageBranchUpdated, payload)
		if err != nil {
			return errs.Wrap(err, errs.Internal, "encode message_branch_updated")
		}
		if err := append(env); err != nil {
			return err
		}
		if err := t.Apply(env); err != nil {
			return err
		}
	}

	env, err := events.New(now, events.MessageDeleted, events.MessageDeletedPayload{MessageID: messageID})
	if err != nil {
		return errs.Wrap(err, errs.Internal, "encode message_deleted")
	}
	if err := append(env); err != nil {
		return err
	}
	return t.Apply(env)
}

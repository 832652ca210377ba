package main

import (
	"reflect"

	"github.com/hrygo/loomchat/internal/tree"
)

// sameMessageOrder reports whether two message sets from independent
// replays of the same log are equivalent. Comparison is by message ID,
// not slice position, since map iteration order varies while the derived
// state must not.
func sameMessageOrder(a, b []*tree.Message) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[string]*tree.Message, len(a))
	for _, m := range a {
		byID[m.ID] = m
	}
	for _, m2 := range b {
		m1, ok := byID[m2.ID]
		if !ok {
			return false
		}
		if m1.Order != m2.Order || m1.ActiveBranchID != m2.ActiveBranchID || m1.ConversationID != m2.ConversationID {
			return false
		}
		if !reflect.DeepEqual(m1.BranchIDs, m2.BranchIDs) {
			return false
		}
	}
	return true
}

package contextengine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/tree"
)

// blockOfTokens builds a content block worth exactly n*charsPerToken chars,
// i.e. n estimated tokens.
func blockOfTokens(n int) []events.ContentBlock {
	return events.TextBlocks(strings.Repeat("x", n*charsPerToken))
}

func entryOfTokens(branchID string, n int) tree.PathEntry {
	return tree.PathEntry{
		Message: &tree.Message{ID: "m-" + branchID},
		Branch:  &tree.Branch{ID: branchID, Role: tree.RoleUser, ContentBlocks: blockOfTokens(n)},
	}
}

var branchIDSeq int

func pathOfNTokenMessages(count, tokensEach int) []tree.PathEntry {
	path := make([]tree.PathEntry, count)
	for i := 0; i < count; i++ {
		branchIDSeq++
		path[i] = entryOfTokens(fmt.Sprintf("b%d", branchIDSeq), tokensEach)
	}
	return path
}

func TestRollingNormalAtExactlyMaxTokens(t *testing.T) {
	r := NewRolling(1000, 500, 1<<30, 0)
	path := pathOfNTokenMessages(10, 100) // 1000 tokens exactly
	_, meta := r.Prepare(path, "sys", nil)
	require.False(t, meta.InGracePeriod)
	require.Equal(t, 0, meta.DroppedMessages)
	require.Equal(t, 1000, meta.TotalTokens)
}

func TestRollingEntersGraceAtMaxPlusOne(t *testing.T) {
	r := NewRolling(1000, 500, 1<<30, 0)
	path := pathOfNTokenMessages(8, 100) // 800
	_, meta := r.Prepare(path, "sys", nil)
	require.False(t, meta.InGracePeriod)

	path = append(append([]tree.PathEntry{}, path...), pathOfNTokenMessages(2, 100)...) // 1000
	path = append(path, entryOfTokens("b-plus-one", 1))                                 // 1001 == max+1
	_, meta = r.Prepare(path, "sys", nil)
	require.True(t, meta.InGracePeriod)
	require.Equal(t, 0, meta.DroppedMessages)
	require.Equal(t, 1001, meta.TotalTokens)
}

func TestRollingStaysGraceAtBoundaryThenRotates(t *testing.T) {
	r := NewRolling(1000, 500, 1<<30, 0)

	// build one consistently-growing path so each call sees the same
	// timeline with more messages appended, not a different branch.
	base := pathOfNTokenMessages(8, 100) // 800, normal
	_, meta := r.Prepare(base, "sys", nil)
	require.False(t, meta.InGracePeriod)

	grown := append(append([]tree.PathEntry{}, base...), pathOfNTokenMessages(4, 100)...) // 1200, grace
	_, meta = r.Prepare(grown, "sys", nil)
	require.True(t, meta.InGracePeriod)

	atBoundary := append(append([]tree.PathEntry{}, grown...), pathOfNTokenMessages(3, 100)...) // 1500 == max+grace, stays grace
	_, meta = r.Prepare(atBoundary, "sys", nil)
	require.True(t, meta.InGracePeriod)
	require.Equal(t, 0, meta.DroppedMessages)
	require.Equal(t, 1500, meta.TotalTokens)

	overBoundary := append(append([]tree.PathEntry{}, atBoundary...), pathOfNTokenMessages(1, 100)...) // 1600, rotate
	_, meta = r.Prepare(overBoundary, "sys", nil)
	require.False(t, meta.InGracePeriod)
	require.LessOrEqual(t, meta.TotalTokens, 1000)
	require.Greater(t, meta.DroppedMessages, 0)
}

func TestRollingBranchChangeResetsGraceRegardlessOfTokens(t *testing.T) {
	r := NewRolling(1000, 500, 1<<30, 0)

	path := pathOfNTokenMessages(12, 100) // 1200, grace
	_, meta := r.Prepare(path, "sys", nil)
	require.True(t, meta.InGracePeriod)

	other := pathOfNTokenMessages(4, 100) // different (shorter) branch signature, 400 tokens
	_, meta = r.Prepare(other, "sys", nil)
	require.False(t, meta.InGracePeriod)
	require.Equal(t, 0, meta.DroppedMessages)
}

func TestRollingCacheAnchorMarksLastBlockWithoutMutatingTree(t *testing.T) {
	r := NewRolling(1000, 500, 100, 2)
	path := pathOfNTokenMessages(5, 100)
	orig := path[3].Branch.ContentBlocks[0].CacheCtrl

	prompt, meta := r.Prepare(path, "sys", nil)
	require.GreaterOrEqual(t, meta.TotalTokens, 100)
	require.NotNil(t, prompt.Hints.CacheAnchorIndex)
	anchored := prompt.Messages[*prompt.Hints.CacheAnchorIndex]
	require.True(t, anchored.ContentBlocks[len(anchored.ContentBlocks)-1].CacheCtrl)

	require.Equal(t, orig, path[3].Branch.ContentBlocks[0].CacheCtrl)
}

func TestAppendStrategyIncludesEntirePath(t *testing.T) {
	path := pathOfNTokenMessages(20, 50)
	prompt, meta := AppendStrategy{}.Prepare(path, "sys", nil)
	require.Len(t, prompt.Messages, 20)
	require.Equal(t, 1000, meta.TotalTokens)
}

package contextengine

import (
	"sync"

	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/tree"
)

// RollingStrategy is the stateful windowing strategy with a grace period
// and branch-change detection. One instance is scoped to a single
// conversation; its state is not meaningful shared across conversations.
type RollingStrategy struct {
	MaxTokens         int
	MaxGraceTokens    int
	CacheMinTokens    int
	CacheDepthFromEnd int

	mu                  sync.Mutex
	inGracePeriod       bool
	baselineTokens      int
	lastBranchSignature string
	lastMessageCount    int
}

// NewRolling constructs a RollingStrategy with its window parameters.
func NewRolling(maxTokens, maxGraceTokens, cacheMinTokens, cacheDepthFromEnd int) *RollingStrategy {
	return &RollingStrategy{
		MaxTokens:         maxTokens,
		MaxGraceTokens:    maxGraceTokens,
		CacheMinTokens:    cacheMinTokens,
		CacheDepthFromEnd: cacheDepthFromEnd,
	}
}

// InGracePeriod reports the strategy's current grace state, for metrics.
func (r *RollingStrategy) InGracePeriod() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inGracePeriod
}

func (r *RollingStrategy) Prepare(path []tree.PathEntry, systemPrompt string, newMessage *PromptMessage) (Prompt, Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sig := tree.BranchSignature(path)
	if sig != r.lastBranchSignature {
		// branch change triggers a fresh window, regardless of token count
		r.inGracePeriod = false
		r.baselineTokens = 0
	}
	r.lastBranchSignature = sig

	msgs := toPromptMessages(path)
	total := pathTokens(path)
	if newMessage != nil {
		msgs = append(msgs, *newMessage)
		total += EstimateTokens(newMessage.ContentBlocks)
	}

	dropped := 0
	switch {
	case total > r.MaxTokens+r.MaxGraceTokens:
		for len(msgs) > 0 && total > r.MaxTokens {
			total -= EstimateTokens(msgs[0].ContentBlocks)
			msgs = msgs[1:]
			dropped++
		}
		r.inGracePeriod = false
		r.baselineTokens = 0
	case total > r.MaxTokens:
		if !r.inGracePeriod {
			r.baselineTokens = total
		}
		r.inGracePeriod = true
	default:
		r.inGracePeriod = false
		r.baselineTokens = 0
	}

	r.lastMessageCount = len(msgs)

	hints := ProviderHints{}
	if r.CacheDepthFromEnd > 0 && total >= r.CacheMinTokens && r.CacheDepthFromEnd <= len(msgs) {
		idx := len(msgs) - r.CacheDepthFromEnd
		hints.CacheAnchorIndex = &idx
		if blocks := msgs[idx].ContentBlocks; len(blocks) > 0 {
			cloned := make([]events.ContentBlock, len(blocks))
			copy(cloned, blocks)
			cloned[len(cloned)-1].CacheCtrl = true
			msgs[idx].ContentBlocks = cloned
		}
	}

	return Prompt{SystemPrompt: systemPrompt, Messages: msgs, Hints: hints},
		Metadata{InGracePeriod: r.inGracePeriod, DroppedMessages: dropped, TotalTokens: total}
}

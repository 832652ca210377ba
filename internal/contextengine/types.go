// Package contextengine turns a conversation's active branch path into
// the sequence of messages (and system prompt) handed to an upstream
// provider, under a configurable context-management strategy.
package contextengine

import (
	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/tree"
)

// PromptMessage is one message as seen by the provider, stripped of tree
// bookkeeping (branch/message IDs) that has no meaning upstream.
type PromptMessage struct {
	Role          string
	ContentBlocks []events.ContentBlock
}

// ProviderHints are strategy-derived directives that a provider driver
// may or may not act on.
type ProviderHints struct {
	CacheAnchorIndex  *int
	StopSequences     []string
	ImageInlineBudget int
}

// Prompt is the shape a strategy emits for the inference driver to consume.
type Prompt struct {
	SystemPrompt string
	Messages     []PromptMessage
	Hints        ProviderHints
}

// Metadata reports what a Prepare call decided, for logging and metrics.
type Metadata struct {
	InGracePeriod   bool
	DroppedMessages int
	TotalTokens     int
}

// Strategy prepares a Prompt from an active path, optionally including a
// newMessage not yet part of the path (e.g. the user turn about to be
// sent).
type Strategy interface {
	Prepare(path []tree.PathEntry, systemPrompt string, newMessage *PromptMessage) (Prompt, Metadata)
}

func toPromptMessages(path []tree.PathEntry) []PromptMessage {
	out := make([]PromptMessage, 0, len(path))
	for _, e := range path {
		out = append(out, PromptMessage{Role: string(e.Branch.Role), ContentBlocks: e.Branch.ContentBlocks})
	}
	return out
}

func pathTokens(path []tree.PathEntry) int {
	total := 0
	for _, e := range path {
		total += EstimateTokens(e.Branch.ContentBlocks)
	}
	return total
}

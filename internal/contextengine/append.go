package contextengine

import "github.com/hrygo/loomchat/internal/tree"

// AppendStrategy includes the entire active path, unbounded.
type AppendStrategy struct{}

func (AppendStrategy) Prepare(path []tree.PathEntry, systemPrompt string, newMessage *PromptMessage) (Prompt, Metadata) {
	msgs := toPromptMessages(path)
	total := pathTokens(path)
	if newMessage != nil {
		msgs = append(msgs, *newMessage)
		total += EstimateTokens(newMessage.ContentBlocks)
	}
	return Prompt{SystemPrompt: systemPrompt, Messages: msgs}, Metadata{TotalTokens: total}
}

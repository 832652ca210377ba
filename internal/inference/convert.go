package inference

import (
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/loomchat/internal/contextengine"
	"github.com/hrygo/loomchat/internal/events"
)

// toChatMessages flattens a prepared Prompt's messages into the
// role/content pairs go-openai expects. Thinking blocks are omitted from
// the outbound request; image blocks are rendered as a bracketed
// placeholder since this driver targets text-completion profiles.
func toChatMessages(p contextengine.Prompt) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(p.Messages)+1)
	if p.SystemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.SystemPrompt})
	}
	for _, m := range p.Messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: blocksToText(m.ContentBlocks)})
	}
	return out
}

func blocksToText(blocks []events.ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch b.Type {
		case "text":
			sb.WriteString(b.Text)
		case "image":
			sb.WriteString("[image]")
		}
	}
	return sb.String()
}

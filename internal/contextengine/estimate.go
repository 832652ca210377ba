package contextengine

import "github.com/hrygo/loomchat/internal/events"

// charsPerToken is a conservative characters-per-token approximation.
// Deterministic by construction; downstream pricing reconciles against
// provider-reported counts.
const charsPerToken = 4

// EstimateTokens approximates the token cost of a message's content
// blocks.
func EstimateTokens(blocks []events.ContentBlock) int {
	chars := 0
	for _, b := range blocks {
		chars += len(b.Text) + len(b.Thinking)
		if b.Type == "image" {
			chars += 512 * charsPerToken // flat per-image estimate, no vision tokenizer available
		}
	}
	if chars == 0 {
		return 0
	}
	tokens := chars / charsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

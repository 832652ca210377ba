// Package inference implements the streaming driver: it takes a prepared
// prompt, drives it through an upstream chat-completion stream, persists
// the terminal content onto a branch, and records usage as a
// metrics_added event. The stream.Recv() loop falls back to a chunk-count
// estimate when the upstream reports no usage.
package inference

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// ChatStream is the subset of *openai.ChatCompletionStream the driver
// needs, narrowed so tests can substitute a fake.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// StreamClient is the subset of *openai.Client the driver needs.
type StreamClient interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)
}

type openAIClient struct {
	c *openai.Client
}

// NewOpenAIClient adapts a real go-openai client to StreamClient.
func NewOpenAIClient(c *openai.Client) StreamClient {
	return openAIClient{c: c}
}

func (a openAIClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	return a.c.CreateChatCompletionStream(ctx, req)
}

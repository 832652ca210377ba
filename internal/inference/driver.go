package inference

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/loomchat/internal/contextengine"
	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/metrics"
	"github.com/hrygo/loomchat/internal/provider"
	"github.com/hrygo/loomchat/internal/room"
	"github.com/hrygo/loomchat/internal/tree"
)

// Request is everything the driver needs to run one generation turn.
type Request struct {
	ConversationID string
	UserID         string
	MessageID      string
	BranchID       string
	Profile        provider.Profile
	Model          string
	Prompt         contextengine.Prompt
	MaxTokens      int
	Temperature    float32

	// InitialContent carries the branch's existing content for a continue
	// turn: streamed deltas append to it and the terminal
	// message_branch_updated persists the combined text. Empty for chat,
	// edit, and regenerate turns, which start the branch fresh. The caller
	// is responsible for including the partial assistant message in Prompt
	// so the upstream picks up where the branch left off.
	InitialContent string
}

// Usage is the token accounting extracted from the stream, either from
// provider-reported usage or the chunk-count estimate used when a profile
// doesn't return one.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool
}

// ChunkFunc is invoked for every delta the driver receives, plus once more
// with isComplete=true carrying the final usage (provider-reported, or the
// chunk-count estimate) after a clean finish or a cancellation. A run that
// fails upstream makes no isComplete call.
type ChunkFunc func(text string, isComplete bool, usage *Usage)

// CostFunc prices a completed usage against a profile, returning milli-cents
// and the currency to record in the metrics_added event.
type CostFunc func(profile provider.Profile, model string, usage Usage) (int64, string)

// Driver runs one streaming generation turn: it claims the room's
// generation slot, streams deltas from an upstream chat-completion call,
// persists the terminal branch content, and records usage.
type Driver struct {
	client   StreamClient
	rooms    *room.Manager
	cost     CostFunc
	exporter *metrics.Exporter
}

// NewDriver builds a Driver. cost may be nil, in which case metrics are
// recorded with zero cost.
func NewDriver(client StreamClient, rooms *room.Manager, cost CostFunc) *Driver {
	return &Driver{client: client, rooms: rooms, cost: cost}
}

// WithMetrics attaches a Prometheus exporter; every turn then also records
// its token usage, cost, latency, and outcome there, alongside the durable
// metrics_added event.
func (d *Driver) WithMetrics(e *metrics.Exporter) *Driver {
	d.exporter = e
	return d
}

// ConvAppend persists conversation-log events (message_branch_updated);
// UserAppend persists user-log events (metrics_added). They are kept
// distinct since the two event kinds live in different logs.
type Appenders struct {
	ConvAppend tree.Appender
	UserAppend func(events.Envelope) error
}

// Run drives one generation turn to completion. It returns nil on a clean
// finish or a cooperative cancellation. It returns a Busy error when the
// slot could not be claimed, the classified Upstream error when the
// upstream call fails (after persisting any partial branch content and
// broadcasting an error frame), and the persistence error when appending
// the terminal events fails.
func (d *Driver) Run(ctx context.Context, t *tree.Tree, now func() time.Time, req Request, app Appenders, onChunk ChunkFunc) error {
	if !d.rooms.StartGeneration(req.ConversationID, req.UserID, req.MessageID) {
		return errs.New(errs.Busy, "a generation is already in flight for this conversation")
	}
	defer d.rooms.EndGeneration(req.ConversationID)

	startedAt := time.Now()

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    toChatMessages(req.Prompt),
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	stream, err := d.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		upErr := classifyUpstreamError(err)
		d.rooms.Broadcast(req.ConversationID, room.Frame{Type: "error", ConversationID: req.ConversationID, Data: upErr}, nil)
		d.recordMetrics(app, now(), req, Usage{}, startedAt, true)
		return upErr
	}
	defer stream.Close()

	content := req.InitialContent
	var blocks []events.ContentBlock
	chunkCount := 0
	var usage *Usage

runLoop:
	for {
		select {
		case <-ctx.Done():
			break runLoop
		default:
		}

		resp, recvErr := stream.Recv()
		if recvErr != nil {
			if isEOF(recvErr) {
				break runLoop
			}
			upErr := classifyUpstreamError(recvErr)
			d.finalizeBranch(t, app, now(), req, content, blocks)
			d.rooms.Broadcast(req.ConversationID, room.Frame{Type: "error", ConversationID: req.ConversationID, Data: upErr}, nil)
			d.recordMetrics(app, now(), req, estimateUsage(chunkCount), startedAt, true)
			return upErr
		}

		if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
			usage = &Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
			break runLoop
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta != "" {
			chunkCount++
			content += delta
			onChunk(delta, false, nil)
		}
		if resp.Choices[0].FinishReason != "" {
			break runLoop
		}
	}

	cancelled := ctx.Err() != nil
	if content != "" {
		blocks = events.TextBlocks(content)
	}
	if usage == nil {
		u := estimateUsage(chunkCount)
		usage = &u
	}

	if err := d.finalizeBranch(t, app, now(), req, content, blocks); err != nil {
		return err
	}
	if err := d.recordMetrics(app, now(), req, *usage, startedAt, false); err != nil {
		return err
	}

	onChunk("", true, usage)
	d.rooms.Broadcast(req.ConversationID, room.Frame{Type: "stream", ConversationID: req.ConversationID, Data: map[string]any{
		"messageId":  req.MessageID,
		"branchId":   req.BranchID,
		"isComplete": true,
		"cancelled":  cancelled,
	}}, nil)
	return nil
}

func estimateUsage(chunkCount int) Usage {
	return Usage{TotalTokens: chunkCount * 10, CompletionTokens: chunkCount * 10, Estimated: true}
}

func (d *Driver) finalizeBranch(t *tree.Tree, app Appenders, now time.Time, req Request, content string, blocks []events.ContentBlock) error {
	return t.UpdateBranchContent(app.ConvAppend, now, req.MessageID, req.BranchID, content, blocks, "")
}

func (d *Driver) recordMetrics(app Appenders, now time.Time, req Request, usage Usage, startedAt time.Time, failed bool) error {
	var costMilliCents int64
	var currency string
	if d.cost != nil {
		costMilliCents, currency = d.cost(req.Profile, req.Model, usage)
	}
	if d.exporter != nil {
		d.exporter.RecordGeneration(req.Profile.ID, req.Model, usage.PromptTokens, usage.CompletionTokens, costMilliCents, currency, time.Since(startedAt), failed)
	}
	payload := events.MetricsAddedPayload{
		ConversationID:   req.ConversationID,
		MessageID:        req.MessageID,
		BranchID:         req.BranchID,
		ProfileID:        req.Profile.ID,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostMilliCents:   costMilliCents,
		Currency:         currency,
		LatencyMs:        time.Since(startedAt).Milliseconds(),
		Failed:           failed,
	}
	env, err := events.New(now, events.MetricsAdded, payload)
	if err != nil {
		return errs.Wrap(err, errs.Internal, "encode metrics_added")
	}
	return app.UserAppend(env)
}

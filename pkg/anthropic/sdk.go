package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/jsonl"
	"github.com/rotisserie/eris"
)

// apiClient implements Client on the official SDK.
type apiClient struct {
	sdk sdk.Client
}

// NewClient returns a Client talking to the real API with the given key.
func NewClient(apiKey string) Client {
	return &apiClient{sdk: sdk.NewClient(option.WithAPIKey(apiKey))}
}

func (c *apiClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.sdk.Messages.New(ctx, sdkMessageParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return messageFromSDK(msg), nil
}

func (c *apiClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	requests := make([]sdk.MessageBatchNewParamsRequest, len(req.Requests))
	for i, r := range req.Requests {
		params := sdkMessageParams(r.Params)
		requests[i] = sdk.MessageBatchNewParamsRequest{
			CustomID: r.CustomID,
			Params: sdk.MessageBatchNewParamsRequestParams{
				Model:       params.Model,
				MaxTokens:   params.MaxTokens,
				Messages:    params.Messages,
				System:      params.System,
				Temperature: params.Temperature,
			},
		}
	}

	batch, err := c.sdk.Messages.Batches.New(ctx, sdk.MessageBatchNewParams{Requests: requests})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create batch")
	}
	return batchFromSDK(batch), nil
}

func (c *apiClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	batch, err := c.sdk.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: get batch %s", batchID)
	}
	return batchFromSDK(batch), nil
}

func (c *apiClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	stream := c.sdk.Messages.Batches.ResultsStreaming(ctx, batchID)
	if err := stream.Err(); err != nil {
		return nil, eris.Wrapf(err, "anthropic: get batch results %s", batchID)
	}
	return &resultStream{stream: stream}, nil
}

// resultStream adapts the SDK's jsonl stream to BatchResultIterator.
type resultStream struct {
	stream  *jsonl.Stream[sdk.MessageBatchIndividualResponse]
	current BatchResultItem
}

func (s *resultStream) Next() bool {
	if !s.stream.Next() {
		return false
	}
	s.current = batchItemFromSDK(s.stream.Current())
	return true
}

func (s *resultStream) Item() BatchResultItem { return s.current }

func (s *resultStream) Err() error { return s.stream.Err() }

func (s *resultStream) Close() error { return s.stream.Close() }

func sdkMessageParams(req MessageRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  sdkMessages(req.Messages),
	}
	if len(req.System) > 0 {
		params.System = sdkSystem(req.System)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func sdkMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		text := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out[i] = sdk.NewAssistantMessage(text)
		} else {
			out[i] = sdk.NewUserMessage(text)
		}
	}
	return out
}

func sdkSystem(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{Text: b.Text}
		if b.CacheControl != nil {
			cc := sdk.NewCacheControlEphemeralParam()
			if b.CacheControl.TTL != "" {
				cc.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
			}
			out[i].CacheControl = cc
		}
	}
	return out
}

func messageFromSDK(msg *sdk.Message) *MessageResponse {
	content := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		content = append(content, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return &MessageResponse{
		ID:           msg.ID,
		Model:        string(msg.Model),
		Content:      content,
		StopReason:   string(msg.StopReason),
		StopSequence: msg.StopSequence,
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
}

func batchFromSDK(batch *sdk.MessageBatch) *BatchResponse {
	return &BatchResponse{
		ID:               batch.ID,
		ProcessingStatus: string(batch.ProcessingStatus),
		ResultsURL:       batch.ResultsURL,
		RequestCounts: RequestCounts{
			Processing: batch.RequestCounts.Processing,
			Succeeded:  batch.RequestCounts.Succeeded,
			Errored:    batch.RequestCounts.Errored,
			Canceled:   batch.RequestCounts.Canceled,
			Expired:    batch.RequestCounts.Expired,
		},
	}
}

func batchItemFromSDK(resp sdk.MessageBatchIndividualResponse) BatchResultItem {
	item := BatchResultItem{CustomID: resp.CustomID, Type: resp.Result.Type}
	if resp.Result.Type == "succeeded" {
		msg := resp.Result.Message
		item.Message = messageFromSDK(&msg)
	}
	return item
}

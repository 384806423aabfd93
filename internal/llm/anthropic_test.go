package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/pkg/anthropic"
)

// mockAnthropicClient implements anthropic.Client for testing.
type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAnthropicClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

// stubIterator yields a fixed list of batch result items.
type stubIterator struct {
	items []anthropic.BatchResultItem
	idx   int
}

func (s *stubIterator) Next() bool {
	if s.idx < len(s.items) {
		s.idx++
		return true
	}
	return false
}

func (s *stubIterator) Item() anthropic.BatchResultItem { return s.items[s.idx-1] }
func (s *stubIterator) Err() error                      { return nil }
func (s *stubIterator) Close() error                    { return nil }

func testAnthropicCfg() (config.AnthropicConfig, config.LLMConfig) {
	return config.AnthropicConfig{
			ClassifyModel:       "claude-haiku-4-5-20251001",
			ExtractModel:        "claude-sonnet-4-5-20250929",
			MaxBatchSize:        100,
			SmallBatchThreshold: 3,
		}, config.LLMConfig{
			MaxTokens:   1024,
			Temperature: 0.1,
		}
}

func textMessage(id, text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         id,
		Model:      "claude-haiku-4-5-20251001",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage: anthropic.TokenUsage{
			InputTokens:  100,
			OutputTokens: 20,
		},
	}
}

func TestAnthropicComplete(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 1024 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Content == "classify this"
	})).Return(textMessage("msg_1", `{"categoria": "fiscal"}`), nil)

	resp, err := backend.Complete(context.Background(), Request{Prompt: "classify this"})
	require.NoError(t, err)
	assert.Equal(t, `{"categoria": "fiscal"}`, resp.Text)
	assert.Equal(t, 100, resp.Usage.InputTokens)
	assert.Equal(t, 20, resp.Usage.OutputTokens)
	assert.Greater(t, resp.Usage.Cost, 0.0)

	mc.AssertExpectations(t)
}

func TestAnthropicComplete_ModelOverride(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" && req.MaxTokens == 4096
	})).Return(textMessage("msg_2", "requirements"), nil)

	_, err := backend.Complete(context.Background(), Request{
		Prompt:    "extract",
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
	})
	require.NoError(t, err)
	mc.AssertExpectations(t)
}

func TestAnthropicComplete_SystemBlock(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 && req.System[0].Text == "classifier instructions"
	})).Return(textMessage("msg_3", "ok"), nil)

	_, err := backend.Complete(context.Background(), Request{
		System: "classifier instructions",
		Prompt: "doc",
	})
	require.NoError(t, err)
	mc.AssertExpectations(t)
}

func TestAnthropicComplete_APIErrorIsUnavailable(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := backend.Complete(context.Background(), Request{Prompt: "doc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnthropicComplete_EmptyContentIsMalformed(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		ID:      "msg_empty",
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: "   "}},
	}, nil)

	_, err := backend.Complete(context.Background(), Request{Prompt: "doc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestAnthropicCompleteBatch_SmallUsesDirectCalls(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Messages[0].Content == "doc one"
	})).Return(textMessage("msg_a", "answer one"), nil)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Messages[0].Content == "doc two"
	})).Return(nil, errors.New("rate limited"))

	out, err := backend.CompleteBatch(context.Background(), []BatchItem{
		{ID: "d1", Request: Request{Prompt: "doc one"}},
		{ID: "d2", Request: Request{Prompt: "doc two"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "answer one", out["d1"].Text)

	// The batch API is never touched below the threshold.
	mc.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestAnthropicCompleteBatch_LargeUsesBatchAPI(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	// Shared system prompt: a primer request warms the cache first.
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 && req.System[0].CacheControl != nil
	})).Return(textMessage("msg_primer", "ok"), nil)

	mc.On("CreateBatch", mock.Anything, mock.MatchedBy(func(req anthropic.BatchRequest) bool {
		return len(req.Requests) == 3
	})).Return(&anthropic.BatchResponse{ID: "batch_1", ProcessingStatus: "in_progress"}, nil)

	mc.On("GetBatch", mock.Anything, "batch_1").Return(&anthropic.BatchResponse{
		ID:               "batch_1",
		ProcessingStatus: "ended",
		RequestCounts:    anthropic.RequestCounts{Succeeded: 3},
	}, nil)

	iter := &stubIterator{items: []anthropic.BatchResultItem{
		{CustomID: "d1", Type: "succeeded", Message: textMessage("msg_1", "one")},
		{CustomID: "d2", Type: "succeeded", Message: textMessage("msg_2", "two")},
		{CustomID: "d3", Type: "errored"},
	}}
	mc.On("GetBatchResults", mock.Anything, "batch_1").Return(iter, nil)

	items := []BatchItem{
		{ID: "d1", Request: Request{System: "shared", Prompt: "doc one"}},
		{ID: "d2", Request: Request{System: "shared", Prompt: "doc two"}},
		{ID: "d3", Request: Request{System: "shared", Prompt: "doc three"}},
	}
	out, err := backend.CompleteBatch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "one", out["d1"].Text)
	assert.Equal(t, "two", out["d2"].Text)

	mc.AssertExpectations(t)
}

func TestAnthropicCompleteBatch_CreateBatchFailureIsUnavailable(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	mc.On("CreateBatch", mock.Anything, mock.Anything).Return(nil, errors.New("service down"))

	items := []BatchItem{
		{ID: "d1", Request: Request{Prompt: "a"}},
		{ID: "d2", Request: Request{Prompt: "b"}},
		{ID: "d3", Request: Request{Prompt: "c"}},
	}
	_, err := backend.CompleteBatch(context.Background(), items)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnthropicCompleteBatch_Empty(t *testing.T) {
	mc := new(mockAnthropicClient)
	aCfg, lCfg := testAnthropicCfg()
	backend := NewAnthropic(mc, aCfg, lCfg)

	out, err := backend.CompleteBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSharedSystem(t *testing.T) {
	same := []BatchItem{
		{Request: Request{System: "s"}},
		{Request: Request{System: "s"}},
	}
	assert.Equal(t, "s", sharedSystem(same))

	mixed := []BatchItem{
		{Request: Request{System: "s"}},
		{Request: Request{System: "other"}},
	}
	assert.Equal(t, "", sharedSystem(mixed))

	empty := []BatchItem{{Request: Request{}}}
	assert.Equal(t, "", sharedSystem(empty))
}

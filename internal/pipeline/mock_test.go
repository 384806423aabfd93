package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/licitaflow/compliance-cli/internal/llm"
	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/internal/pdftext"
	"github.com/licitaflow/compliance-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, notice model.NoticeRef, documentCount int) (*model.Run, error) {
	args := m.Called(ctx, notice, documentCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	args := m.Called(ctx, runID, errMsg)
	return args.Error(0)
}

func (m *mockStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunPhase), args.Error(1)
}

func (m *mockStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	args := m.Called(ctx, phaseID, result)
	return args.Error(0)
}

func (m *mockStore) GetCachedText(ctx context.Context, fileHash string) (*model.ExtractedText, error) {
	args := m.Called(ctx, fileHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractedText), args.Error(1)
}

func (m *mockStore) SetCachedText(ctx context.Context, fileHash string, content string, ttl time.Duration) error {
	args := m.Called(ctx, fileHash, content, ttl)
	return args.Error(0)
}

func (m *mockStore) DeleteExpiredTexts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Backend Mock ---

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockBackend) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *mockBackend) CompleteBatch(ctx context.Context, items []llm.BatchItem) (map[string]*llm.Response, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*llm.Response), args.Error(1)
}

// --- Text Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, pdfPath string) (pdftext.ExtractedText, error) {
	args := m.Called(ctx, pdfPath)
	return args.Get(0).(pdftext.ExtractedText), args.Error(1)
}

// --- Ensure interface compliance ---
var (
	_ store.Store       = (*mockStore)(nil)
	_ llm.Backend       = (*mockBackend)(nil)
	_ pdftext.Extractor = (*mockExtractor)(nil)
)

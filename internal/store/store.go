package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/licitaflow/compliance-cli/internal/model"
)

// ErrNotFound distinguishes a missing row from a store failure. API
// handlers branch on it with eris.Is to answer 404.
var ErrNotFound = eris.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	NoticeName   string          `json:"notice_name,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for compliance analysis runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, notice model.NoticeRef, documentCount int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Extraction cache
	GetCachedText(ctx context.Context, fileHash string) (*model.ExtractedText, error)
	SetCachedText(ctx context.Context, fileHash string, content string, ttl time.Duration) error
	DeleteExpiredTexts(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

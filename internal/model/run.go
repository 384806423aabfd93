package model

import "time"

// RunStatus tracks an analysis run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusExtracting  RunStatus = "extracting"
	RunStatusClassifying RunStatus = "classifying"
	RunStatusMatching    RunStatus = "matching"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// NoticeRef identifies the procurement notice a run analyzes.
type NoticeRef struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Run is one end-to-end compliance analysis: a notice plus a set of company
// documents, tracked from queue to report.
type Run struct {
	ID            string     `json:"id"`
	Notice        NoticeRef  `json:"notice"`
	DocumentCount int        `json:"document_count"`
	Status        RunStatus  `json:"status"`
	Error         string     `json:"error,omitempty"`
	Result        *RunResult `json:"result,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RunResult captures the run's output and its cost.
type RunResult struct {
	Report     *ComplianceReport `json:"report,omitempty"`
	TokensUsed int               `json:"tokens_used"`
	CostUSD    float64           `json:"cost_usd"`
	DurationMS int64             `json:"duration_ms"`
}

// PhaseStatus tracks a single pipeline phase within a run.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// RunPhase records timing and outcome for one pipeline phase.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseResult is the per-phase summary persisted alongside the run.
type PhaseResult struct {
	ItemsProcessed int     `json:"items_processed"`
	ItemsFailed    int     `json:"items_failed"`
	TokensUsed     int     `json:"tokens_used"`
	CostUSD        float64 `json:"cost_usd"`
	DurationMS     int64   `json:"duration_ms"`
	Error          string  `json:"error,omitempty"`
}

// TokenUsage accumulates LLM token counts and cost across calls.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int     `json:"cache_read_tokens,omitempty"`
	Cost                float64 `json:"cost_usd"`
}

// Add merges another usage record into this one.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.Cost += other.Cost
}

// Total returns combined input and output tokens, cache reads included.
func (t TokenUsage) Total() int {
	return t.InputTokens + t.OutputTokens + t.CacheCreationTokens + t.CacheReadTokens
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaflow/compliance-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestNewSQLite_InvalidPath(t *testing.T) {
	_, err := NewSQLite("/nonexistent-dir-xyz/sub/test.db")
	require.Error(t, err)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Second migrate must not fail on existing tables.
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx))
}

func TestSQLite_CompletePhase_DerivesStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.NoticeRef{Path: "/e.pdf", Name: "Edital"}, 1)
	require.NoError(t, err)

	okPhase, err := st.CreatePhase(ctx, run.ID, "extract")
	require.NoError(t, err)
	require.NoError(t, st.CompletePhase(ctx, okPhase.ID, &model.PhaseResult{ItemsProcessed: 12}))

	failedPhase, err := st.CreatePhase(ctx, run.ID, "classify")
	require.NoError(t, err)
	require.NoError(t, st.CompletePhase(ctx, failedPhase.ID, &model.PhaseResult{Error: "backend unavailable"}))

	var status string
	err = st.db.QueryRowContext(ctx, `SELECT status FROM run_phases WHERE id = ?`, okPhase.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseStatusComplete), status)

	err = st.db.QueryRowContext(ctx, `SELECT status FROM run_phases WHERE id = ?`, failedPhase.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseStatusFailed), status)
}

func TestSQLite_GetRun_CorruptNoticeJSON(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO runs (id, notice, document_count, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"corrupt-run", "{not json", 0, "queued", now, now,
	)
	require.NoError(t, err)

	_, err = st.GetRun(ctx, "corrupt-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal notice")
}

func TestSQLite_GetRun_CorruptResultJSON(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO runs (id, notice, document_count, status, result, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"corrupt-result", `{"path":"/e.pdf","name":"Edital"}`, 0, "complete", "{broken", now, now,
	)
	require.NoError(t, err)

	_, err = st.GetRun(ctx, "corrupt-result")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal result")
}

func TestSQLite_FailRun_ClearsNothingElse(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.NoticeRef{Path: "/e.pdf", Name: "Edital"}, 4)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "llm: backend unavailable"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "llm: backend unavailable", got.Error)
	assert.Equal(t, 4, got.DocumentCount)
	assert.Equal(t, "Edital", got.Notice.Name)
}

func TestSQLite_UpdatedAtAdvances(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.NoticeRef{Path: "/e.pdf", Name: "Edital"}, 1)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusExtracting))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestCheckRowsAffected_ZeroRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.db.ExecContext(ctx, `UPDATE runs SET status = 'queued' WHERE id = 'missing'`)
	require.NoError(t, err)

	err = checkRowsAffected(res, "run", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "run missing")
}

func TestPhaseStatus(t *testing.T) {
	assert.Equal(t, model.PhaseStatusComplete, phaseStatus(&model.PhaseResult{ItemsProcessed: 3}))
	assert.Equal(t, model.PhaseStatusFailed, phaseStatus(&model.PhaseResult{Error: "boom"}))
	assert.Equal(t, model.PhaseStatusComplete, phaseStatus(nil))
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/metrics"
	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/internal/pipeline"
	"github.com/licitaflow/compliance-cli/internal/store"
)

// analyzer starts compliance analyses. *pipeline.Pipeline satisfies it; the
// handler tests substitute a stub.
type analyzer interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

var _ analyzer = (*pipeline.Pipeline)(nil)

// apiServer carries the handler dependencies. runCtx outlives individual
// requests so asynchronous analyses stop with the server, not with the
// caller's connection.
type apiServer struct {
	store    store.Store
	analyzer analyzer
	runCtx   context.Context
}

// newRouter builds the HTTP API exposed by the serve command.
func newRouter(ctx context.Context, st store.Store, az analyzer) http.Handler {
	s := &apiServer{store: st, analyzer: az, runCtx: ctx}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metrics.Default.Middleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Default.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NoticePath == "" {
		writeError(w, http.StatusBadRequest, "notice_path is required")
		return
	}
	if req.DocsDir == "" {
		writeError(w, http.StatusBadRequest, "docs_dir is required")
		return
	}

	noticeName := pipeline.NoticeName(req.NoticePath)

	// Run the analysis asynchronously; progress is tracked in the store.
	go func() {
		result, err := s.analyzer.Run(s.runCtx, req)
		if err != nil {
			zap.L().Error("api: analysis failed",
				zap.String("notice", noticeName),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("api: analysis complete",
			zap.String("notice", noticeName),
			zap.String("run_id", result.RunID),
			zap.Float64("compliance_rate", result.Report.ComplianceRate()),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"notice": noticeName,
	})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:     model.RunStatus(q.Get("status")),
		NoticeName: q.Get("notice"),
	}

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// intParam parses a non-negative integer query parameter, writing a 400
// response when the value is malformed. An empty value parses to zero.
func intParam(w http.ResponseWriter, value, name string) (int, bool) {
	if value == "" {
		return 0, true
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

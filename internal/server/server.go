// Package server exposes stored benchmark results as a JSON API and lets
// clients trigger runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/benchmark"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/recommend"
	"github.com/sells-group/geo-benchmark/internal/report"
	"github.com/sells-group/geo-benchmark/internal/store"
)

// Runner starts or resumes a benchmark run.
type Runner interface {
	Run(ctx context.Context, opts benchmark.Options) (*model.Run, error)
}

// Recommender turns a run's metrics into a recommendation report.
type Recommender interface {
	Generate(ctx context.Context, rows []model.DailyMetric, queries map[int64]model.Query) recommend.Report
}

// Server holds the API dependencies. Runner and Recommender may be nil,
// which disables their endpoints.
type Server struct {
	store       store.Store
	reader      *report.Reader
	runner      Runner
	recommender Recommender
	origins     []string

	// runCtx outlives individual requests so triggered runs keep going.
	runCtx  context.Context
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Server. Triggered runs use runCtx.
func New(runCtx context.Context, st store.Store, reader *report.Reader, runner Runner, rec Recommender, origins []string) *Server {
	return &Server{
		store:       st,
		reader:      reader,
		runner:      runner,
		recommender: rec,
		origins:     origins,
		runCtx:      runCtx,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/trends", s.handleTrends)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleTriggerRun)
			r.Get("/latest", s.handleLatest)
			r.Route("/{runID}", func(r chi.Router) {
				r.Use(s.loadRun)
				r.Get("/", s.handleGetRun)
				r.Get("/sov", s.handleSOV)
				r.Get("/breakdown", s.handleBreakdown)
				r.Get("/citations", s.handleCitations)
				r.Get("/recommendations", s.handleRecommendations)
			})
		})
	})
	return r
}

// Wait blocks until triggered runs have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

type ctxKey struct{}

func (s *Server) loadRun(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid run id")
			return
		}
		run, err := s.store.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			s.internal(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, run)))
	})
}

func runFrom(r *http.Request) *model.Run {
	return r.Context().Value(ctxKey{}).(*model.Run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Limit:  intParam(q.Get("limit"), 50),
		Offset: intParam(q.Get("offset"), 0),
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, runFrom(r))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := s.reader.LatestRunID(r.Context())
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if id == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"run_id": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id})
}

func (s *Server) handleSOV(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	out, err := s.reader.ShareOfVoice(r.Context(), runFrom(r).ID, p)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	out, err := s.reader.Breakdown(r.Context(), runFrom(r).ID, p)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	days := intParam(r.URL.Query().Get("days"), report.DefaultTrendDays)
	out, err := s.reader.Trends(r.Context(), p, days)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if out == nil {
		out = []model.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCitations(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	limit := intParam(r.URL.Query().Get("limit"), report.DefaultCitationLimit)
	out, err := s.reader.Citations(r.Context(), runFrom(r).ID, p, limit)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if out == nil {
		out = []model.DomainCount{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.recommender == nil {
		writeError(w, http.StatusServiceUnavailable, "recommendations are not configured")
		return
	}
	rows, queries, err := s.reader.RunMetrics(r.Context(), runFrom(r).ID)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.recommender.Generate(r.Context(), rows, queries))
}

type triggerRequest struct {
	ResumeRunID int64 `json:"resume_run_id"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runs cannot be triggered from this server")
		return
	}
	var req triggerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if !s.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		run, err := s.runner.Run(s.runCtx, benchmark.Options{
			Trigger:     model.TriggerManual,
			ResumeRunID: req.ResumeRunID,
		})
		if err != nil {
			zap.L().Error("triggered run failed", zap.Int64("resume_run_id", req.ResumeRunID), zap.Error(err))
			return
		}
		zap.L().Info("triggered run finished",
			zap.Int64("run_id", run.ID),
			zap.String("status", string(run.Status)))
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":        "accepted",
		"resume_run_id": req.ResumeRunID,
	})
}

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func providerParam(w http.ResponseWriter, r *http.Request) (model.Provider, bool) {
	p := model.Provider(r.URL.Query().Get("provider"))
	if p != "" && !p.Valid() {
		writeError(w, http.StatusBadRequest, "unknown provider "+string(p))
		return "", false
	}
	return p, true
}

func intParam(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

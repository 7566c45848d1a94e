package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adaptive_task_generator/cache"
	"adaptive_task_generator/pipeline"
	"adaptive_task_generator/report"
)

const (
	defaultTimeout = 60 * time.Second
	summaryRunes   = 160
)

// Planner runs one generation request.
type Planner interface {
	Generate(ctx context.Context, req pipeline.Request) pipeline.Result
}

type Server struct {
	planner Planner
	cache   *cache.Service
	store   *planStore
	logger  *zap.Logger
	timeout time.Duration
}

// Plan is a stored generation result.
type Plan struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Summary   string          `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
	Result    pipeline.Result `json:"result"`
}

func (p Plan) report() report.Plan {
	return report.Plan{
		Title:    p.Title,
		Coverage: p.Result.Coverage,
		Tasks:    p.Result.Tasks,
		Cost:     p.Result.Cost,
		Warnings: p.Result.Warnings,
	}
}

type planStore struct {
	mu    sync.Mutex
	plans map[string]Plan
}

func newStore() *planStore {
	return &planStore{plans: make(map[string]Plan)}
}

func (s *planStore) set(p Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

func (s *planStore) get(id string) (Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	return p, ok
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.Named("server")
		}
	}
}

// WithCache exposes cache stats and invalidation.
func WithCache(c *cache.Service) Option {
	return func(s *Server) { s.cache = c }
}

// WithTimeout bounds one plan generation.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(planner Planner, opts ...Option) (*Server, error) {
	if planner == nil {
		return nil, errors.New("planner required")
	}
	s := &Server{
		planner: planner,
		store:   newStore(),
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/plans", s.handlePlanCreate)
	mux.HandleFunc("GET /api/plans/{id}", s.handlePlanByID)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logMiddleware(mux)
}

// --- Handlers ---

func (s *Server) handlePlanCreate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res := s.planner.Generate(ctx, req)

	p := Plan{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Title:     req.Goal.Title,
		CreatedAt: time.Now().UTC(),
		Result:    res,
	}
	p.Summary = report.Digest(p.report(), summaryRunes)
	s.store.set(p)
	s.logger.Info("plan created",
		zap.String("plan_id", p.ID),
		zap.String("user_id", p.UserID),
		zap.Int("tasks", len(res.Tasks)),
		zap.Bool("empty", res.Empty()),
		zap.String("summary", p.Summary),
	)
	writeJSON(w, http.StatusCreated, p)
}

// handlePlanByID serves JSON, or a rendered report with ?format=markdown|html|inline.
func (s *Server) handlePlanByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := s.store.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	format := report.Format(r.URL.Query().Get("format"))
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, p)
		return
	}
	body, err := report.Render(p.report(), format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ct := "text/html; charset=utf-8"
	if format == report.FormatMarkdown {
		ct = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

type invalidateReq struct {
	Version string `json:"version"`
}

// handleCacheInvalidate drops one template-set version, or everything when version is empty.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache disabled")
		return
	}
	var req invalidateReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var (
		n   int
		err error
	)
	if req.Version == "" {
		n, err = s.cache.InvalidateAll(r.Context())
	} else {
		n, err = s.cache.InvalidateVersion(r.Context(), req.Version)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

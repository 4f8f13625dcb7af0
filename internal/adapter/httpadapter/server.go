package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

// maxTableBytes bounds an uploaded station table.
const maxTableBytes = 1 << 20

// RunStore returns the most recent persisted run.
type RunStore interface {
	LatestRun(ctx context.Context) (sqlite.StoredRun, error)
}

// ReadinessFunc adapts a plain function, such as a database ping, to a
// readiness checker.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Server exposes health, readiness, metrics and the jump analysis endpoints.
type Server struct {
	httpServer *http.Server
	analyzer   *Analyzer
	runs       RunStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// POST /v1/jumps. GET /v1/runs/latest is only routed when runs is non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, analyzer *Analyzer, runs RunStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		analyzer: analyzer,
		runs:     runs,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/jumps", s.handleAnalyze)
	if runs != nil {
		mux.HandleFunc("GET /v1/runs/latest", s.handleLatestRun)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type jumpResponse struct {
	RunID       string                 `json:"run_id"`
	ProcessedAt time.Time              `json:"processed_at"`
	Cached      bool                   `json:"cached"`
	Stations    []domain.StationRecord `json:"stations"`
	Summary     domain.JumpSummary     `json:"summary"`
	Table       []domain.SummaryRow    `json:"table"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	bounds, err := parseBounds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxTableBytes)
	result, cached, err := s.analyzer.Analyze(r.Context(), body, bounds)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("jump analysis failed", "error", err)
		} else {
			s.logger.Warn("jump analysis rejected", "error", err, "status", status)
		}
		writeError(w, status, err)
		return
	}

	table := result.Summary.Rows()
	for i := range table {
		table[i].Value = domain.Round(table[i].Value, domain.ExportDigits)
	}
	writeJSON(w, http.StatusOK, jumpResponse{
		RunID:       result.RunID,
		ProcessedAt: result.ProcessedAt,
		Cached:      cached,
		Stations:    result.Stations,
		Summary:     result.Summary,
		Table:       table,
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.LatestRun(r.Context())
	if errors.Is(err, sqlite.ErrNoRuns) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("latest run lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func parseBounds(r *http.Request) (domain.JumpBounds, error) {
	q := r.URL.Query()
	if q.Get("upstream") == "" || q.Get("downstream") == "" {
		return domain.JumpBounds{}, errors.New("upstream and downstream query parameters are required")
	}
	up, err := strconv.Atoi(q.Get("upstream"))
	if err != nil {
		return domain.JumpBounds{}, errors.New("upstream must be an integer station sequence number")
	}
	down, err := strconv.Atoi(q.Get("downstream"))
	if err != nil {
		return domain.JumpBounds{}, errors.New("downstream must be an integer station sequence number")
	}
	return domain.JumpBounds{Upstream: up, Downstream: down}, nil
}

// statusFor maps analysis errors to HTTP status codes. Malformed input is the
// client's fault; a well-formed table with unusable physics is unprocessable.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrMissingColumn), errors.Is(err, domain.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, domain.ErrDivisionByZero),
		errors.Is(err, domain.ErrNumericDomain):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}

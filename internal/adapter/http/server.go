package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/imagestore"
	"github.com/couchcryptid/colorbar-timeseries/internal/timeseries"
)

// Service is the engine surface the API exposes.
type Service interface {
	sharedobs.ReadinessChecker
	Domain() string
	Domains() []string
	SwitchDomain(name string) error
	Prefetch(variable string, window imagestore.Window) error
	Generate(ctx context.Context, req domain.TimeSeriesRequest, progress timeseries.ProgressFunc) (*domain.TimeSeriesResult, error)
	ValueAt(ctx context.Context, variable string, ts time.Time, point domain.SamplePoint) (domain.PointValue, error)
}

// Publisher receives every finished time series. Publishing failures are
// logged and never fail the request.
type Publisher interface {
	Publish(ctx context.Context, result *domain.TimeSeriesResult) error
}

// Server exposes the time-series API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	svc        Service
	publisher  Publisher
	logger     *slog.Logger
}

// NewServer creates the HTTP server. publisher may be nil.
func NewServer(addr string, svc Service, publisher Publisher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Generation over a long range can take minutes.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		svc:       svc,
		publisher: publisher,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /domains", s.handleDomains)
	mux.HandleFunc("PUT /domain", s.handleSwitchDomain)
	mux.HandleFunc("POST /prefetch", s.handlePrefetch)
	mux.HandleFunc("POST /timeseries", s.handleTimeSeries)
	mux.HandleFunc("POST /timeseries/export", s.handleExport)
	mux.HandleFunc("GET /timeseries/stream", s.handleStream)
	mux.HandleFunc("GET /value", s.handleValue)

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

// publish hands a result to the publisher, if any.
func (s *Server) publish(ctx context.Context, result *domain.TimeSeriesResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, result); err != nil {
		s.logger.Warn("publish time series failed",
			"domain", result.Domain, "variable", result.Variable, "error", err)
	}
}

// errorStatus maps engine errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrUnknownDomain):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoActiveDomain):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrImageLoad):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

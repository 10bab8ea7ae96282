// Package api serves the answering service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/insight/internal/bus"
	"github.com/MikeSquared-Agency/insight/internal/dataset"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

const (
	serviceName = "Data Insight Generator API"
	version     = "1.0.0"
)

// QueryService answers questions and manages session history.
type QueryService interface {
	Answer(ctx context.Context, sub query.Submission) (query.Answer, error)
	History(ctx context.Context, sessionID string) ([]query.Record, error)
	ClearHistory(ctx context.Context, sessionID string) (int64, error)
}

// DatasetService stores and describes uploads.
type DatasetService interface {
	Upload(filename, name string, r io.Reader) (*dataset.Dataset, error)
	Get(id string) (*dataset.Dataset, error)
	Delete(id string) error
	MaxBytes() int64
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports whether the event bus connection is up.
type ConnChecker interface {
	Connected() bool
}

type Options struct {
	Port           int
	AllowedOrigins []string
	Providers      []query.Provider
	Store          Pinger
	Events         bus.Publisher
	Bus            ConnChecker // nil when NATS is not configured
	Logger         *slog.Logger
}

type Server struct {
	router   *chi.Mux
	port     int
	http     *http.Server
	queries  QueryService
	datasets DatasetService
	store    Pinger
	bus      ConnChecker
	events   bus.Publisher
	logger   *slog.Logger
	provider []query.Provider
}

func NewServer(queries QueryService, datasets DatasetService, opts Options) *Server {
	if opts.Events == nil {
		opts.Events = bus.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(CORS(opts.AllowedOrigins))
	router.Use(ProcessTime)

	s := &Server{
		router:   router,
		port:     opts.Port,
		queries:  queries,
		datasets: datasets,
		store:    opts.Store,
		bus:      opts.Bus,
		events:   opts.Events,
		logger:   opts.Logger,
		provider: opts.Providers,
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/info", s.info)

		r.Route("/datasets", func(r chi.Router) {
			r.Post("/upload", s.uploadDataset)
			r.Get("/{datasetID}", s.getDataset)
			r.Delete("/{datasetID}", s.deleteDataset)
		})

		r.Route("/queries", func(r chi.Router) {
			r.Post("/", s.submitQuery)
			r.Get("/history/{sessionID}", s.getHistory)
			r.Delete("/history/{sessionID}", s.clearHistory)
		})
	})

	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "healthy", "version": version}
	status := http.StatusOK
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("health check: store unreachable", "error", err)
			body["status"] = "degraded"
			body["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	if s.bus != nil && !s.bus.Connected() {
		s.logger.Warn("health check: nats disconnected")
		body["status"] = "degraded"
		body["nats"] = "disconnected"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	providers := make([]string, len(s.provider))
	for i, p := range s.provider {
		providers[i] = string(p)
	}
	var maxMB int64
	if s.datasets != nil {
		maxMB = s.datasets.MaxBytes() / (1024 * 1024)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":                 serviceName,
		"version":              version,
		"llm_providers":        providers,
		"supported_file_types": []string{"csv", "xlsx", "xls", "json"},
		"max_file_size_mb":     maxMB,
	})
}

func (s *Server) publish(subject string, data any) {
	if err := s.events.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(query.ErrorBody{Detail: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, query.ErrorBody{Detail: detail})
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr    *query.ValidationError
		failure *query.Failure
		perr    *dataset.ParseError
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, query.ErrNotFound), errors.Is(err, dataset.ErrFileGone):
		writeError(w, http.StatusNotFound, notFoundDetail(err))
	case errors.Is(err, dataset.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, dataset.ErrUnsupportedType.Error())
	case errors.Is(err, dataset.ErrTooLarge), errors.As(err, &tooBig):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large. Maximum size is %d MB", s.datasets.MaxBytes()/(1024*1024)))
	case errors.As(err, &perr):
		writeError(w, http.StatusUnprocessableEntity, "Failed to process dataset: "+perr.Error())
	case errors.As(err, &failure):
		writeError(w, http.StatusBadGateway, "Error processing query: "+failureDetail(failure))
	default:
		s.logger.Error("unhandled error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
	}
}

// failureDetail names the provider and reason only; Failure.Err may hold
// transport text that is not for clients.
func failureDetail(f *query.Failure) string {
	msg := fmt.Sprintf("%s failed", f.Provider)
	if f.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", f.StatusCode)
	}
	if f.Reason != "" {
		msg += ": " + f.Reason
	}
	return msg
}

func notFoundDetail(err error) string {
	if errors.Is(err, dataset.ErrFileGone) {
		return "Dataset file no longer available"
	}
	return "Dataset not found"
}

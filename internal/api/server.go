// Package api serves the scraper over HTTP.
//
// Every endpoint maps onto one operation of the storefront client and
// answers with JSON. Errors carry the error code and a user message:
//
//	{"error": {"code": "NOT_FOUND", "message": "no app found with ID 872"}}
package api

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/buildinfo"
	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
)

// Scraper is the part of [itunes.Client] the server needs.
type Scraper interface {
	SearchAppIDs(ctx context.Context, term string, opts itunes.SearchOptions) ([]int64, error)
	CollectionAppIDs(ctx context.Context, opts itunes.CollectionOptions) ([]int64, error)
	DeveloperApps(ctx context.Context, developerID int64, opts itunes.DeveloperOptions) ([]itunes.AppRecord, error)
	SimilarAppIDs(ctx context.Context, appID int64, opts itunes.SimilarOptions) ([]int64, error)
	AppDetails(ctx context.Context, id itunes.AppID, opts itunes.DetailsOptions) (itunes.AppRecord, error)
	BatchDetails(ctx context.Context, ids []itunes.AppID, opts itunes.BatchOptions) iter.Seq[itunes.AppRecord]
	Ratings(ctx context.Context, id itunes.AppID, opts itunes.RatingsOptions) (itunes.Histogram, error)
}

var _ Scraper = (*itunes.Client)(nil)

// Server routes HTTP requests to a [Scraper].
type Server struct {
	scraper  Scraper
	logger   *log.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

// New returns a Server. gatherer backs /metrics; nil uses the default
// Prometheus registry.
func New(s Scraper, logger *log.Logger, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{scraper: s, logger: logger, gatherer: gatherer, timeout: 10 * time.Minute}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := buildinfo.Info()
		body["status"] = "ok"
		writeJSON(w, http.StatusOK, body)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/search", s.handleSearch)
		r.Get("/collections", s.handleCollection)
		r.Get("/developers/{id}/apps", s.handleDeveloper)
		r.Get("/apps", s.handleBatch)
		r.Get("/apps/{id}", s.handleDetails)
		r.Get("/apps/{id}/similar", s.handleSimilar)
		r.Get("/apps/{id}/ratings", s.handleRatings)
		r.Get("/entries/{kind}", s.handleEntries)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch code := apperrors.GetCode(err); {
	case apperrors.IsInvalid(err):
		return http.StatusBadRequest
	case code == apperrors.ErrCodeNotFound, code == apperrors.ErrCodeNoResults:
		return http.StatusNotFound
	case code == apperrors.ErrCodeNetwork, code == apperrors.ErrCodeParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := string(apperrors.GetCode(err))
	if code == "" {
		code = string(apperrors.ErrCodeInternal)
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]errorBody{
		"error": {Code: code, Message: apperrors.UserMessage(err)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

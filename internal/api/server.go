// Package api serves the deal desk HTTP API.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/debounce"
	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/match"
	"github.com/sells-group/dealdesk/internal/metrics"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/internal/tracker"
)

// Submitter runs one document intake.
type Submitter interface {
	Submit(ctx context.Context, req intake.Request) (*intake.Submission, error)
}

// MatchRunner matches a deal against the lender directory.
type MatchRunner interface {
	Run(ctx context.Context, dealID string) ([]model.LenderMatch, *match.Result, error)
}

// Deps are the collaborators of the API. Intake, Matcher, Publisher and
// Board are optional.
type Deps struct {
	Store     store.Store
	Intake    Submitter
	Matcher   MatchRunner
	Publisher events.Publisher
	Board     *tracker.Board
}

// Options configures the API.
type Options struct {
	AllowedOrigins []string
	// EditDebounce is the quiet period before field edits are written.
	EditDebounce   time.Duration
	MaxUploadBytes int64
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	opts   Options
	edits  *debounce.Debouncer[string, model.DealFields]
	router chi.Router
}

// New builds the API and its routes.
func New(deps Deps, opts Options) *Server {
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if opts.EditDebounce <= 0 {
		opts.EditDebounce = 800 * time.Millisecond
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}

	s := &Server{deps: deps, opts: opts}
	s.edits = debounce.New[string, model.DealFields](opts.EditDebounce, model.DealFields.Merge, s.flushEdit)
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close writes every pending edit.
func (s *Server) Close(ctx context.Context) error {
	return s.edits.Close(ctx)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))
	r.Use(instrument)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/intake", s.submitIntake)
	r.Post("/reconcile", s.reconcile)

	r.Route("/deals", func(r chi.Router) {
		r.Get("/", s.listDeals)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getDeal)
			r.Patch("/", s.editDeal)
			r.Delete("/", s.deleteDeal)
			r.Put("/status", s.setDealStatus)
			r.Put("/owners/{n}", s.upsertOwner)
			r.Post("/matches", s.runMatches)
			r.Get("/matches", s.listMatches)
		})
	})
	r.Put("/matches/{id}/status", s.setMatchStatus)

	r.Get("/lenders", s.listLenders)
	r.Get("/analytics/funding", s.fundingAnalytics)
	return r
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.APIRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

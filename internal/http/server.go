package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/metrics"
	"github.com/tankkwon/delivery-app/internal/services"
)

// DefaultWriteLimit is the number of mutating requests a client may make per
// minute.
const DefaultWriteLimit = 60

// Options configures NewServer. The zero value is usable.
type Options struct {
	Logger             *log.Logger
	CORSAllowedOrigins []string
	// WriteLimit caps POST/PUT/DELETE per client per minute. 0 selects
	// DefaultWriteLimit and a negative value disables limiting.
	WriteLimit int
	// TrustProxy derives the client address from X-Forwarded-For and
	// X-Real-IP. Without it the connection address is used.
	TrustProxy bool
}

// Server is the JSON API over a Dashboard.
type Server struct {
	http.Server
	dash         *services.Dashboard
	logger       *log.Logger
	access       *log.StructuredLogger
	limiter      *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, dash *services.Dashboard, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	limit := opts.WriteLimit
	if limit == 0 {
		limit = DefaultWriteLimit
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		dash:    dash,
		logger:  logger,
		access:  log.NewStructuredLogger(logger),
		limiter: newRateLimiter(limit),
	}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(assignRequestID)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestIDMiddleware(requestIDFrom))
	r.Use(s.accessLog)
	r.Use(observe)
	r.Use(recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limitWrites)

		r.Get("/records", s.handleListRecords)
		r.Post("/records", s.handleCreateRecord)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Delete("/records/{id}", s.handleDeleteRecord)

		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
		r.Get("/series/daily", s.handleDailySeries)
		r.Get("/series/monthly", s.handleMonthlySeries)
		r.Get("/ratio", s.handleRatio)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/overview", s.handleOverview)

		r.Get("/goal", s.handleGetGoal)
		r.Put("/goal", s.handleSetGoal)
		r.Delete("/goal", s.handleClearGoal)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the limiter cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the dashboard is wired. The store is loaded
// before the listener starts, so no further check is needed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.dash == nil {
		WriteError(w, http.StatusServiceUnavailable, CodeInternal, "not ready")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"records": len(s.dash.Records()),
	})
}

// Package api serves the dashboard HTTP API and the live financials stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/bot"
	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/metrics"
)

const requestTimeout = 3 * time.Minute

// Server exposes the bot over HTTP
type Server struct {
	cfg         config.APIConfig
	features    config.FeaturesConfig
	metricsPath string
	orch        *bot.Orchestrator
	hub         *Hub
	router      chi.Router
	server      *http.Server
	logger      *logrus.Logger
	unsubscribe func()
}

// NewServer builds the router. Call Start to listen.
func NewServer(cfg *config.Config, orch *bot.Orchestrator, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:         cfg.API,
		features:    cfg.Features,
		orch:        orch,
		hub:         NewHub(cfg.API.AllowedOrigins, orch.Session().Financials, logger),
		logger:      logger,
		unsubscribe: func() {},
	}
	if cfg.Metrics.Enabled {
		s.metricsPath = cfg.Metrics.Path
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		// The stream is long-lived and must not sit behind the request timeout
		r.Get("/ws", s.hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/financials", s.handleFinancials)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/status", s.handleStatus)

			r.Route("/positions", func(r chi.Router) {
				r.Get("/", s.handleListPositions)
				r.Get("/{id}", s.handleGetPosition)
				r.Delete("/{id}", s.handleRemovePosition)
				r.Post("/{id}/settle", s.handleSettlePosition)
			})

			r.Post("/scan", s.handleScan)
			r.Post("/sync", s.handleSync)
			r.Post("/settle", s.handleSettle)

			r.Route("/agent", func(r chi.Router) {
				r.Get("/", s.handleAgentStatus)
				r.Post("/arm", s.handleArm)
				r.Post("/disarm", s.handleDisarm)
			})
		})
	})

	if s.metricsPath != "" {
		r.Handle(s.metricsPath, metrics.Handler())
	}

	return r
}

// Start runs the hub and starts listening in the background. It shuts down when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	s.unsubscribe = s.orch.Session().Subscribe(s.hub.Publish)

	s.server = &http.Server{
		Addr:         ":" + strconv.Itoa(s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.WithField("port", s.cfg.Port).Info("API server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("API server error")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			s.logger.WithError(err).Warn("API server shutdown failed")
		}
	}()

	return nil
}

// Shutdown stops the HTTP server and detaches the hub from the session
func (s *Server) Shutdown() error {
	s.unsubscribe()
	if s.server == nil {
		return nil
	}

	s.logger.Info("API server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// corsMiddleware allows the dashboard origins. An empty list allows any origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", strings.Join([]string{
					http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
				}, ", "))
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs each request with logrus
func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := logger.WithFields(logrus.Fields{
				"component":   "api",
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("Request failed")
				return
			}
			entry.Debug("Request served")
		})
	}
}

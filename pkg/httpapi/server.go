// Package httpapi serves the shelf widgets, the testimonial carousel and the
// auth form as JSON over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/shelf/internal/governance"
	"github.com/polisai/shelf/pkg/auth"
	"github.com/polisai/shelf/pkg/domain"
	"github.com/polisai/shelf/pkg/rotation"
	"github.com/polisai/shelf/pkg/telemetry"
)

// Rate limiter routes.
const (
	RouteRefresh = "refresh"
	RouteAuth    = "auth"
)

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MetricsPath serves Prometheus metrics when Metrics is set. Empty disables it.
	MetricsPath string
	// Categories lists the labelled categories per widget, if any.
	Categories map[string][]domain.Category

	Widgets      []Widget
	Testimonials *rotation.Carousel[domain.Testimonial]
	Auth         auth.Provider
	Limiter      *governance.RateLimiter
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger
}

// Server is the shelf HTTP server.
type Server struct {
	opts    Options
	widgets map[string]Widget
	logger  *slog.Logger

	httpServer *http.Server
	handler    http.Handler
	stopOnce   sync.Once
}

// NewServer creates a Server and builds its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = governance.NewRateLimiter(nil)
	}

	s := &Server{
		opts:    opts,
		widgets: make(map[string]Widget, len(opts.Widgets)),
		logger:  logger,
	}
	for _, w := range opts.Widgets {
		s.widgets[w.Name()] = w
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	var h http.Handler = mux
	h = opts.Metrics.Middleware(h)
	s.handler = otelhttp.NewHandler(h, "shelf",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + telemetry.EndpointName(r.URL.Path)
		}),
	)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", s.opts.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping HTTP server")
		if s.httpServer != nil {
			if stopErr := s.httpServer.Shutdown(ctx); stopErr != nil {
				s.logger.Error("Failed to shut down HTTP server", "error", stopErr)
				err = stopErr
			}
		}
	})
	return err
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	refresh := func(h http.HandlerFunc) http.Handler { return s.opts.Limiter.Middleware(RouteRefresh, h) }
	limitAuth := func(h http.HandlerFunc) http.Handler { return s.opts.Limiter.Middleware(RouteAuth, h) }

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/testimonials", s.handleTestimonial)
	mux.HandleFunc("POST /api/testimonials/goto/{index}", s.handleTestimonialGoTo)
	mux.HandleFunc("POST /api/testimonials/key/{key}", s.handleTestimonialKey)
	for _, action := range []string{"next", "prev", "pause", "resume"} {
		mux.HandleFunc("POST /api/testimonials/"+action, s.handleTestimonialAction(action))
	}

	mux.Handle("POST /api/auth/register", limitAuth(s.handleAuth(auth.ModeRegister)))
	mux.Handle("POST /api/auth/signin", limitAuth(s.handleAuth(auth.ModeSignIn)))

	mux.HandleFunc("GET /api/{widget}", s.handleWidget)
	mux.HandleFunc("GET /api/{widget}/categories", s.handleCategories)
	mux.HandleFunc("PUT /api/{widget}/category", s.handleSelectCategory)
	mux.Handle("POST /api/{widget}/refresh", refresh(s.handleRefresh))

	if s.opts.Metrics != nil && s.opts.MetricsPath != "" {
		mux.Handle("GET "+s.opts.MetricsPath, s.opts.Metrics.Handler())
	}
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string                  `json:"status"`
	Widgets map[string]WidgetHealth `json:"widgets"`
}

// WidgetHealth reports the last load of one widget.
type WidgetHealth struct {
	Error string `json:"error,omitempty"`
}

// Health reports the server status. Widget load failures do not make it unhealthy.
func (s *Server) Health() HealthStatus {
	status := HealthStatus{Status: "healthy", Widgets: make(map[string]WidgetHealth, len(s.widgets))}
	for name, w := range s.widgets {
		var h WidgetHealth
		if err := w.Err(); err != nil {
			h.Error = err.Error()
		}
		status.Widgets[name] = h
	}
	return status
}

// WidgetNames returns the registered widget names in sorted order.
func (s *Server) WidgetNames() []string {
	names := make([]string, 0, len(s.widgets))
	for name := range s.widgets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

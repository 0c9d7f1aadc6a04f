// Package app assembles the shelf widgets, carousel, identity provider and
// HTTP server from a configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/polisai/shelf/internal/fixtures"
	"github.com/polisai/shelf/internal/governance"
	"github.com/polisai/shelf/pkg/auth"
	"github.com/polisai/shelf/pkg/catalog"
	"github.com/polisai/shelf/pkg/config"
	"github.com/polisai/shelf/pkg/domain"
	"github.com/polisai/shelf/pkg/httpapi"
	"github.com/polisai/shelf/pkg/policy"
	"github.com/polisai/shelf/pkg/rotation"
	"github.com/polisai/shelf/pkg/storage"
	"github.com/polisai/shelf/pkg/telemetry"
)

// Options holds the collaborators an App is built with.
type Options struct {
	Config  *config.Config
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// App owns every long-lived component of a running shelf instance.
type App struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	store   *storage.MemorySnapshotStore
	limiter *governance.RateLimiter

	books        *catalog.Pipeline[domain.CatalogBook, domain.BookView]
	upcoming     *catalog.Pipeline[domain.UpcomingBook, domain.BookView]
	menu         *catalog.Pipeline[domain.MenuItem, domain.MenuItemView]
	testimonials *rotation.Carousel[domain.Testimonial]
	widgets      map[string]httpapi.Widget

	server *httpapi.Server

	mu  sync.Mutex
	cfg *config.Config
}

// New builds an App. The testimonials are read synchronously; widget records
// are not loaded until Start.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		logger:  logger,
		metrics: opts.Metrics,
		store:   storage.NewMemorySnapshotStore(),
		limiter: governance.NewRateLimiter(rateLimits(cfg.Server.RateLimits)),
		widgets: make(map[string]httpapi.Widget, 3),
		cfg:     cfg,
	}

	var err error
	a.books, err = newPipeline(ctx, a, config.WidgetBooks, cfg.Widgets.Books, "", catalog.ProjectCatalogBook)
	if err != nil {
		return nil, err
	}
	a.upcoming, err = newPipeline(ctx, a, config.WidgetUpcoming, cfg.Widgets.Upcoming, fixtures.Upcoming, catalog.ProjectUpcomingBook)
	if err != nil {
		return nil, err
	}
	a.menu, err = newPipeline(ctx, a, config.WidgetMenu, cfg.Widgets.Menu, fixtures.Menu, catalog.ProjectMenuItem)
	if err != nil {
		return nil, err
	}
	for _, w := range []httpapi.Widget{httpapi.NewWidget(a.books), httpapi.NewWidget(a.upcoming), httpapi.NewWidget(a.menu)} {
		a.widgets[w.Name()] = w
	}

	items, err := loadTestimonials(ctx, cfg.Widgets.Testimonials)
	if err != nil {
		return nil, err
	}
	a.testimonials = rotation.NewCarousel(items, rotation.Options{
		Name:     config.WidgetTestimonials,
		Interval: cfg.Widgets.Testimonials.Interval(),
		Metrics:  a.metrics,
		Logger:   logger,
	})

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	a.server = httpapi.NewServer(httpapi.Options{
		Addr:         cfg.Server.Address(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MetricsPath:  metricsPath,
		Categories:   map[string][]domain.Category{config.WidgetMenu: catalog.MenuCategories},
		Widgets:      []httpapi.Widget{a.widgets[config.WidgetBooks], a.widgets[config.WidgetUpcoming], a.widgets[config.WidgetMenu]},
		Testimonials: a.testimonials,
		Auth:         auth.NewMemoryProvider(cfg.Auth.BcryptCost),
		Limiter:      a.limiter,
		Metrics:      a.metrics,
		Logger:       logger,
	})
	return a, nil
}

// newPipeline builds the pipeline for one widget. bundled names the embedded
// resource used when the widget has neither a URL nor a path.
func newPipeline[R any, V catalog.Categorized](ctx context.Context, a *App, name string, wc config.WidgetConfig, bundled string, project catalog.Projector[R, V]) (*catalog.Pipeline[R, V], error) {
	src, err := a.newSource(name, wc, bundled)
	if err != nil {
		return nil, err
	}
	env, err := catalog.ParseEnvelope(wc.Envelope)
	if err != nil {
		return nil, fmt.Errorf("widget %s: %w", name, err)
	}

	opts := catalog.Options[R, V]{
		Name:               name,
		Source:             src,
		Envelope:           env,
		Project:            project,
		Limit:              wc.Limit,
		Store:              a.store,
		FallbackToSnapshot: wc.Fallback,
		Metrics:            a.metrics,
		Logger:             a.logger,
	}
	if wc.Policy == config.PolicyAvailableOnly {
		engine, err := policy.NewAvailableOnlyEngine(ctx)
		if err != nil {
			return nil, fmt.Errorf("widget %s: %w", name, err)
		}
		opts.Visibility = engine
	}
	return catalog.NewPipeline(opts)
}

func (a *App) newSource(name string, wc config.WidgetConfig, bundled string) (catalog.Source, error) {
	switch {
	case wc.URL != "":
		var src catalog.Source = catalog.NewHTTPSource(wc.URL, wc.Timeout)
		if wc.Breaker.MaxFailures > 0 {
			breaker := governance.NewCircuitBreaker(governance.CircuitBreakerConfig{
				MaxFailures: wc.Breaker.MaxFailures,
				Cooldown:    wc.Breaker.Cooldown,
			})
			breaker.OnStateChange(func(from, to governance.CircuitBreakerState) {
				a.logger.Warn("Circuit breaker state changed", "widget", name, "from", from, "to", to)
			})
			src = catalog.BreakerSource{Source: src, Breaker: breaker}
		}
		return src, nil
	case wc.Path != "":
		return catalog.FileSource{Path: wc.Path}, nil
	case bundled != "":
		return catalog.FSSource{FS: fixtures.FS(), Path: bundled}, nil
	default:
		return nil, fmt.Errorf("widget %s: %w: no url or path configured", name, domain.ErrConfigInvalid)
	}
}

func loadTestimonials(ctx context.Context, tc config.TestimonialsConfig) ([]domain.Testimonial, error) {
	var src catalog.Source = catalog.FSSource{FS: fixtures.FS(), Path: fixtures.Testimonials}
	if tc.Path != "" {
		src = catalog.FileSource{Path: tc.Path}
	}
	items, err := catalog.Fetch[domain.Testimonial](ctx, src, catalog.EnvelopeAuto)
	if err != nil {
		return nil, fmt.Errorf("load testimonials: %w", err)
	}
	return items, nil
}

func rateLimits(rl config.RateLimitConfig) map[string]governance.RateLimiterConfig {
	return map[string]governance.RateLimiterConfig{
		httpapi.RouteRefresh: {RequestsPerSecond: rl.RefreshPerSecond, BurstSize: rl.RefreshBurst},
		httpapi.RouteAuth:    {RequestsPerSecond: rl.AuthPerSecond, BurstSize: rl.AuthBurst},
	}
}

// Server returns the HTTP server.
func (a *App) Server() *httpapi.Server { return a.server }

// Widget returns the widget with the given name.
func (a *App) Widget(name string) (httpapi.Widget, bool) {
	w, ok := a.widgets[name]
	return w, ok
}

// Testimonials returns the testimonial carousel.
func (a *App) Testimonials() *rotation.Carousel[domain.Testimonial] { return a.testimonials }

// Config returns the configuration currently applied.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Start performs the initial loads of widgets configured to load on start and
// starts testimonial autoplay. Load failures are logged, not returned; the
// widgets report them in their views.
func (a *App) Start(ctx context.Context) error {
	cfg := a.Config()
	loads := map[string]bool{
		config.WidgetBooks:    cfg.Widgets.Books.LoadOnStart,
		config.WidgetUpcoming: cfg.Widgets.Upcoming.LoadOnStart,
		config.WidgetMenu:     cfg.Widgets.Menu.LoadOnStart,
	}

	var wg sync.WaitGroup
	for name, load := range loads {
		if !load {
			continue
		}
		w := a.widgets[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Load(ctx); err != nil && !errors.Is(err, catalog.ErrSuperseded) {
				a.logger.Warn("Initial load failed", "widget", w.Name(), "error", err)
			}
		}()
	}
	wg.Wait()

	if cfg.Widgets.Testimonials.Autoplay {
		if err := a.testimonials.Start(ctx, cfg.Widgets.Testimonials.Interval()); err != nil {
			return fmt.Errorf("start testimonials: %w", err)
		}
	}
	return nil
}

// Run starts the app and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Close()
	return a.server.Start(ctx)
}

// Apply applies the parts of cfg that can change without a restart: widget
// limits, the testimonial interval and autoplay, and rate limits. Sources,
// policies and the listen address require a restart.
func (a *App) Apply(ctx context.Context, cfg *config.Config) {
	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	a.books.SetLimit(cfg.Widgets.Books.Limit)
	a.upcoming.SetLimit(cfg.Widgets.Upcoming.Limit)
	a.menu.SetLimit(cfg.Widgets.Menu.Limit)
	a.limiter.Configure(rateLimits(cfg.Server.RateLimits))

	tc := cfg.Widgets.Testimonials
	a.testimonials.SetInterval(tc.Interval())
	switch {
	case tc.Autoplay && !a.testimonials.Running():
		if err := a.testimonials.Start(ctx, tc.Interval()); err != nil {
			a.logger.Warn("Failed to start testimonials", "error", err)
		}
	case !tc.Autoplay && a.testimonials.Running():
		a.testimonials.Stop()
	}

	if prev.Server.Port != cfg.Server.Port || prev.Widgets.Books.URL != cfg.Widgets.Books.URL {
		a.logger.Warn("Some configuration changes require a restart", "port", cfg.Server.Port, "books_url", cfg.Widgets.Books.URL)
	}
	a.logger.Info("Configuration applied")
}

// Close stops the carousel and releases the snapshot store.
func (a *App) Close() error {
	a.testimonials.Stop()
	return a.store.Close()
}

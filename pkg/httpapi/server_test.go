package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/polisai/shelf/internal/fixtures"
	"github.com/polisai/shelf/internal/governance"
	"github.com/polisai/shelf/pkg/auth"
	"github.com/polisai/shelf/pkg/catalog"
	"github.com/polisai/shelf/pkg/domain"
	"github.com/polisai/shelf/pkg/policy"
	"github.com/polisai/shelf/pkg/rotation"
	"github.com/polisai/shelf/pkg/telemetry"
)

type menuView = catalog.View[domain.MenuItemView]
type bookView = catalog.View[domain.BookView]

type testEnv struct {
	server   *Server
	menu     *catalog.Pipeline[domain.MenuItem, domain.MenuItemView]
	books    *catalog.Pipeline[domain.CatalogBook, domain.BookView]
	upcoming *catalog.Pipeline[domain.UpcomingBook, domain.BookView]
	metrics  *telemetry.Metrics
}

func newTestEnv(t *testing.T, booksURL string, limiter *governance.RateLimiter) *testEnv {
	t.Helper()
	ctx := context.Background()

	engine, err := policy.NewAvailableOnlyEngine(ctx)
	require.NoError(t, err)
	metrics := telemetry.NewMetrics()

	menu, err := catalog.NewPipeline(catalog.Options[domain.MenuItem, domain.MenuItemView]{
		Name:       "menu",
		Source:     catalog.FSSource{FS: fixtures.FS(), Path: fixtures.Menu},
		Envelope:   catalog.EnvelopeBare,
		Project:    catalog.ProjectMenuItem,
		Visibility: engine,
		Metrics:    metrics,
	})
	require.NoError(t, err)

	upcoming, err := catalog.NewPipeline(catalog.Options[domain.UpcomingBook, domain.BookView]{
		Name:     "upcoming",
		Source:   catalog.FSSource{FS: fixtures.FS(), Path: fixtures.Upcoming},
		Envelope: catalog.EnvelopeBare,
		Project:  catalog.ProjectUpcomingBook,
	})
	require.NoError(t, err)

	books, err := catalog.NewPipeline(catalog.Options[domain.CatalogBook, domain.BookView]{
		Name:     "books",
		Source:   catalog.NewHTTPSource(booksURL, 0),
		Envelope: catalog.EnvelopeResults,
		Project:  catalog.ProjectCatalogBook,
		Limit:    4,
	})
	require.NoError(t, err)

	testimonials := rotation.NewCarousel([]domain.Testimonial{
		{Name: "Ava Thompson", Handle: "@ava"},
		{Name: "Elijah Carter", Handle: "@elijah"},
		{Name: "Sophia Martinez", Handle: "@sophia"},
	}, rotation.Options{Name: "testimonials"})

	server := NewServer(Options{
		MetricsPath:  "/metrics",
		Categories:   map[string][]domain.Category{"menu": catalog.MenuCategories},
		Widgets:      []Widget{NewWidget(books), NewWidget(upcoming), NewWidget(menu)},
		Testimonials: testimonials,
		Auth:         auth.NewMemoryProvider(bcrypt.MinCost),
		Limiter:      limiter,
		Metrics:      metrics,
	})

	require.NoError(t, menu.Load(ctx))
	require.NoError(t, upcoming.Load(ctx))

	return &testEnv{server: server, menu: menu, books: books, upcoming: upcoming, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func gutendex(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const gutendexPage = `{"count":5,"results":[
 {"id":84,"title":"Frankenstein","authors":[{"name":"Shelley, Mary Wollstonecraft"}],"bookshelves":["Gothic Fiction"],"formats":{"image/jpeg":"https://img/84.jpg","text/html":"https://read/84"}},
 {"id":1342,"title":"Pride and Prejudice","authors":[{"name":"Austen, Jane"}],"subjects":["Courtship -- Fiction"],"formats":{}},
 {"id":11,"title":"Alice's Adventures in Wonderland","authors":[],"formats":{"image/png":"https://img/11.png"}},
 {"id":2701,"title":"Moby Dick","authors":[{"name":"Melville, Herman"}],"formats":{}},
 {"id":1513,"title":"Romeo and Juliet","authors":[{"name":"Shakespeare, William"}],"formats":{}}
]}`

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decodeAs[HealthStatus](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Widgets, "menu")
	assert.Equal(t, []string{"books", "menu", "upcoming"}, env.server.WidgetNames())
}

func TestMenu_OnlyAvailableItems(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	rec := env.do(t, http.MethodGet, "/api/menu", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	view := decodeAs[menuView](t, rec)
	assert.Len(t, view.Items, 8)
	assert.Equal(t, catalog.AllCategories, view.Category)
	for _, item := range view.Items {
		assert.NotEqual(t, "Mocha", item.Name)
	}
}

func TestMenu_CategoryQuery(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	view := decodeAs[menuView](t, env.do(t, http.MethodGet, "/api/menu?category=coffee", nil))
	require.Len(t, view.Items, 3)
	assert.Equal(t, "coffee", view.Category)
	for _, item := range view.Items {
		assert.Equal(t, "bg-warning", item.Badge)
	}

	view = decodeAs[menuView](t, env.do(t, http.MethodGet, "/api/menu?category=smoothie", nil))
	assert.Empty(t, view.Items)

	// The query does not change the selection.
	assert.Len(t, decodeAs[menuView](t, env.do(t, http.MethodGet, "/api/menu", nil)).Items, 8)
}

func TestMenu_SelectCategory(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	rec := env.do(t, http.MethodPut, "/api/menu/category", map[string]string{"category": "pastry"})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeAs[menuView](t, rec)
	assert.Equal(t, "pastry", view.Category)
	assert.Len(t, view.Items, 2)

	view = decodeAs[menuView](t, env.do(t, http.MethodGet, "/api/menu", nil))
	assert.Equal(t, "pastry", view.Category)

	rec = env.do(t, http.MethodPut, "/api/menu/category", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMenu_Categories(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	resp := decodeAs[CategoriesResponse](t, env.do(t, http.MethodGet, "/api/menu/categories", nil))
	require.Len(t, resp.Options, 6)
	assert.Equal(t, domain.Category{Value: "all", Label: "All Items"}, resp.Options[0])
	assert.Equal(t, []string{"coffee", "tea", "pastry", "sandwich", "dessert"}, resp.Present)
}

func TestUnknownWidget(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	rec := env.do(t, http.MethodGet, "/api/podcasts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "widget_not_found", decodeAs[domain.ErrorResponse](t, rec).Code)
}

func TestUpcoming_Fallbacks(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	view := decodeAs[bookView](t, env.do(t, http.MethodGet, "/api/upcoming", nil))
	require.Len(t, view.Items, 4)
	dune := view.Items[3]
	assert.Equal(t, "Dune", dune.Title)
	assert.Equal(t, catalog.UnknownAuthor, dune.Description)
	assert.Equal(t, catalog.PlaceholderImage, dune.Image)
	assert.Equal(t, "Author: Daniel Okafor", view.Items[1].Description)
}

func TestBooks_RefreshSuccess(t *testing.T) {
	srv := gutendex(t, http.StatusOK, gutendexPage)
	env := newTestEnv(t, srv.URL, nil)

	// Not loaded yet.
	view := decodeAs[bookView](t, env.do(t, http.MethodGet, "/api/books", nil))
	assert.Empty(t, view.Items)
	assert.Empty(t, view.Error)

	rec := env.do(t, http.MethodPost, "/api/books/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeAs[bookView](t, rec)
	require.Len(t, view.Items, 4)
	assert.Equal(t, "Frankenstein", view.Items[0].Title)
	assert.Equal(t, "Author: Shelley, Mary Wollstonecraft", view.Items[0].Description)
	assert.Equal(t, "https://img/84.jpg", view.Items[0].Image)
	assert.Equal(t, "https://read/84", view.Items[0].Link)
	assert.Equal(t, "Gothic Fiction", view.Items[0].Category)
	assert.Equal(t, "https://gutendex.com/books/1342", view.Items[1].Link)
	assert.Equal(t, "Courtship -- Fiction", view.Items[1].Category)
	assert.Equal(t, catalog.UnknownAuthor, view.Items[2].Description)
}

func TestBooks_RefreshFailureIsInline(t *testing.T) {
	srv := gutendex(t, http.StatusInternalServerError, `oops`)
	env := newTestEnv(t, srv.URL, nil)

	rec := env.do(t, http.MethodPost, "/api/books/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, "data failures are not server errors")

	view := decodeAs[bookView](t, rec)
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
	assert.Contains(t, view.Error, "unexpected status 500")

	health := decodeAs[HealthStatus](t, env.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Widgets["books"].Error, "unexpected status 500")
}

func TestBooks_RefreshOutlivesClientDisconnect(t *testing.T) {
	srv := gutendex(t, http.StatusOK, gutendexPage)
	env := newTestEnv(t, srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/books/refresh", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	view := env.books.View()
	assert.Len(t, view.Items, 4)
	assert.Empty(t, view.Error)
	assert.False(t, view.Stale)
}

func TestRefresh_RateLimited(t *testing.T) {
	limiter := governance.NewRateLimiter(map[string]governance.RateLimiterConfig{
		RouteRefresh: {RequestsPerSecond: 0.001, BurstSize: 1},
	})
	env := newTestEnv(t, "http://127.0.0.1:0", limiter)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/menu/refresh", nil).Code)
	rec := env.do(t, http.MethodPost, "/api/menu/refresh", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are never limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/menu", nil).Code)
}

func TestTestimonials(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	resp := decodeAs[TestimonialResponse](t, env.do(t, http.MethodGet, "/api/testimonials", nil))
	require.NotNil(t, resp.Item)
	assert.Equal(t, "Ava Thompson", resp.Item.Name)
	assert.Equal(t, rotation.State{Index: 0, Length: 3}, resp.State)
	assert.False(t, resp.Running)

	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/prev", nil))
	assert.Equal(t, "Sophia Martinez", resp.Item.Name)

	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/next", nil))
	assert.Equal(t, 0, resp.State.Index)

	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/goto/1", nil))
	assert.Equal(t, "Elijah Carter", resp.Item.Name)

	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/pause", nil))
	assert.True(t, resp.State.Paused)
	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/resume", nil))
	assert.False(t, resp.State.Paused)

	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/key/ArrowRight", nil))
	assert.Equal(t, 2, resp.State.Index)
	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/key/ArrowLeft", nil))
	assert.Equal(t, 1, resp.State.Index)
	resp = decodeAs[TestimonialResponse](t, env.do(t, http.MethodPost, "/api/testimonials/key/Enter", nil))
	assert.Equal(t, 1, resp.State.Index)
}

func TestTestimonials_GoToErrors(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/testimonials/goto/7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/testimonials/goto/first", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/testimonials/goto/-1", nil).Code)
}

func TestAuth_RegisterAndSignIn(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)
	creds := map[string]string{"email": "reader@example.com", "password": "secret123"}

	rec := env.do(t, http.MethodPost, "/api/auth/register", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	result := decodeAs[auth.Result](t, rec)
	assert.Equal(t, auth.MessageRegistered, result.Message)
	require.NotNil(t, result.Principal)

	rec = env.do(t, http.MethodPost, "/api/auth/register", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeAs[auth.Result](t, rec).Message, auth.CodeEmailInUse)

	rec = env.do(t, http.MethodPost, "/api/auth/signin", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.MessageSignedIn, decodeAs[auth.Result](t, rec).Message)

	rec = env.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "reader@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "bad", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, auth.CodeInvalidEmail, decodeAs[auth.Result](t, rec).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(`{"email":"a@b.co","password":"x","extra":1}`))
	raw := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)
	env.do(t, http.MethodGet, "/api/menu", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `shelf_http_requests_total{endpoint="menu",method="GET",status_code="200"} 1`)
	assert.Contains(t, body, `shelf_widget_items{widget="menu"} 8`)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodDelete, "/api/menu", nil).Code)
}

func TestServer_StartStop(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", nil)
	env.server.opts.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Start(ctx) }()

	cancel()
	assert.NoError(t, <-done)
	assert.NoError(t, env.server.Stop(context.Background()))
}

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMetrics_RecordLoad(t *testing.T) {
	m := NewMetrics()
	m.RecordLoad("books", OutcomeSuccess, 10*time.Millisecond)
	m.RecordLoad("books", OutcomeError, 5*time.Millisecond)
	m.RecordLoad("books", OutcomeSuccess, 7*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loadsTotal.WithLabelValues("books", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loadsTotal.WithLabelValues("books", OutcomeError)))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLoad("books", OutcomeSuccess, time.Millisecond)
		m.SetItems("books", 4)
		m.RecordRotation("testimonials", "timer")
		m.RecordAuth("signin", true)
		m.RecordConfigReload("success")
		m.RecordHTTPRequest("GET", "books", "200", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.SetItems("menu", 8)
	m.RecordRotation("testimonials", "timer")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `shelf_widget_items{widget="menu"} 8`))
	assert.True(t, strings.Contains(body, `shelf_rotation_advances_total{trigger="timer",widget="testimonials"} 1`))
}

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu?category=tea", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "menu", "418")))
}

func TestEndpointName(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "health"},
		{"/metrics", "metrics"},
		{"/api/books", "books"},
		{"/api/books/refresh", "books"},
		{"/api/upcoming", "upcoming"},
		{"/api/menu/categories", "menu"},
		{"/api/testimonials/goto/2", "testimonials"},
		{"/api/auth/signin", "auth"},
		{"/api/other", "unknown"},
		{"/", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, EndpointName(tt.path))
		})
	}
}

// Auth counters always match the number of recorded attempts.
func TestMetrics_AuthCountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewMetrics()
		results := rapid.SliceOf(rapid.Bool()).Draw(t, "results")

		expectedOK, expectedFail := 0, 0
		for _, ok := range results {
			m.RecordAuth("signin", ok)
			if ok {
				expectedOK++
			} else {
				expectedFail++
			}
		}

		if got := testutil.ToFloat64(m.authAttempts.WithLabelValues("signin", "success")); got != float64(expectedOK) {
			t.Fatalf("success count mismatch: expected %d, got %v", expectedOK, got)
		}
		if got := testutil.ToFloat64(m.authAttempts.WithLabelValues("signin", "failure")); got != float64(expectedFail) {
			t.Fatalf("failure count mismatch: expected %d, got %v", expectedFail, got)
		}
	})
}

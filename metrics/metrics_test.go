package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveRecompute(10*time.Millisecond, 3, nil)
	rec.ObserveRecompute(time.Millisecond, 2, errors.New("boom"))
	rec.ObserveStatsCache(true)
	rec.ObserveStatsCache(false)
	rec.ObserveStatsCache(false)
	rec.ObserveSync(4, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.recomputes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.recomputes.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.snapshots))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.statsCache.WithLabelValues("miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(rec.imported))
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/challenges/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/challenges/1", "/challenges/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/challenges/{id}", "418")))
}

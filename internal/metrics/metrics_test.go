package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/edit/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/edit/{id}", "GET", "404"))
	for _, path := range []string{"/edit/1", "/edit/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/edit/{id}", "GET", "404"))

	assert.Equal(t, float64(2), after-before)
}

func TestRecordAuthEvent(t *testing.T) {
	before := testutil.ToFloat64(AuthEvents.WithLabelValues("login_success"))
	RecordAuthEvent("login_success")
	assert.Equal(t, before+1, testutil.ToFloat64(AuthEvents.WithLabelValues("login_success")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	MemoriesCreated.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "echoes_memories_created_total"))
}

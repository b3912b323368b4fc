package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/groups/{id}", "404"))
	require.Equal(t, float64(2), got)
}

func TestRejectedWriteAndExposition(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.RejectedWrite("student already assigned")
	m.Login("denied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `sis_rejected_writes_total{reason="student already assigned"} 1`))
	require.True(t, strings.Contains(body, `sis_logins_total{result="denied"} 1`))

	var nilMetrics *Metrics
	require.NotPanics(t, func() { nilMetrics.RejectedWrite("x") })
}

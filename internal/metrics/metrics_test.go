package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameCounters(t *testing.T) {
	m := New()
	m.AnswerRecorded(true, 120)
	m.AnswerRecorded(false, 0)
	m.AnswerRecorded(true, 100)
	m.SessionFinished()
	m.BestPromoted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnswersTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnswersTotal.WithLabelValues("false")))
	assert.Equal(t, 220.0, testutil.ToFloat64(m.PointsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsFinished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BestPromotions))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/modules/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/modules/m1", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `quiz_http_request_duration_seconds_count{method="GET",route="/modules/{id}",status="418"} 1`)
}

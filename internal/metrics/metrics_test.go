package metrics

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusBucket(tt.code), "code %d", tt.code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Gauges are always exported; counters only after first observation.
	body := w.Body.String()
	for _, name := range []string{"fraudscore_model_version", "fraudscore_prediction_drift_ks"} {
		assert.Contains(t, body, name)
	}

	ScoringRequestsTotal.WithLabelValues("ok").Inc()
	FamilyOOFAUC.WithLabelValues("gbdt_deep").Set(0.93)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body = w.Body.String()
	assert.Contains(t, body, `fraudscore_scoring_requests_total{status="ok"}`)
	assert.Contains(t, body, `fraudscore_family_oof_auc{family="gbdt_deep"} 0.93`)
}

func TestMiddleware_RecordsMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/models/:version", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/v1/models/:version", "4xx")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models/7", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestLogAndMultiSink(t *testing.T) {
	var buf bytes.Buffer
	ls := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	Multi{NopSink{}, ls}.Log("oof_auc", 0.91)
	assert.Contains(t, buf.String(), `"name":"oof_auc"`)
	assert.Contains(t, buf.String(), `"value":0.91`)
}

func TestPushSinkFlush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
		calls  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		method, path, body = r.Method, r.URL.Path, string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewPushSink(srv.URL, "fraudscore_fit", map[string]string{"run": "run_1"})
	s.Log("oof_auc", 0.9)
	s.Log("fold_auc/gbdt_deep/0", 0.8)
	require.NoError(t, s.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/fraudscore_fit"), path)
	assert.Contains(t, path, "/run/run_1")
	assert.NotEmpty(t, body)
}

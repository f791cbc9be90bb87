package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector("test")

	c.RecordRun("fraud", 50, nil)
	c.RecordRun("fraud", 50, nil)
	c.RecordRun("social", 0, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.AnalysisRuns.WithLabelValues("fraud", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AnalysisRuns.WithLabelValues("social", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.AnalysisRuns.WithLabelValues("social", "success")))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordRun("fraud", 1, nil)
		c.TimeStage(StageWalks)()
	})
}

func TestCollector_TimeStage(t *testing.T) {
	c := NewCollector("test")
	c.TimeStage(StageWalks)()
	c.TimeStage(StageWalks)()

	assert.Equal(t, 1, testutil.CollectAndCount(c.StageDuration))
}

func TestCollector_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewCollector("test")

	router := gin.New()
	router.Use(c.Middleware())
	router.GET("/ping", func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(c.Handler()))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/ping", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "test_http_requests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestStartSpan(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	ctx, span := StartSpan(context.Background(), tracer, "walks")
	require.NotNil(t, ctx)
	assert.NotPanics(t, func() { EndSpan(span, errors.New("failed")) })

	_, span = StartSpan(context.Background(), nil, "walks")
	assert.NotPanics(t, func() { EndSpan(span, nil) })
}

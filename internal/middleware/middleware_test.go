package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(zap.New(core)))
	r.Get("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		logging.L(r.Context()).Info("handler ran")
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/abc", nil))

	require.Equal(t, 2, logs.Len())
	handlerLine := logs.All()[0]
	assert.NotEmpty(t, handlerLine.ContextMap()["request_id"])

	requestLine := logs.All()[1]
	assert.Equal(t, zapcore.WarnLevel, requestLine.Level)
	assert.Equal(t, int64(http.StatusNotFound), requestLine.ContextMap()["status"])
	assert.Equal(t, "/transactions/abc", requestLine.ContextMap()["path"])
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	r := chi.NewRouter()
	r.Use(TracingMiddleware())
	r.Get("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/abc", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /transactions/{id}", spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}

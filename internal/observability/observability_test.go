package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestAudit_LogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	prev := auditLogger.Load()
	SetAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { auditLogger.Store(prev) })

	before := testutil.ToFloat64(AuthEvents.WithLabelValues("login", "error"))
	Audit(context.Background(), "login", 7, errors.New("invalid credentials"), slog.String("login", "maker"))

	assert.Equal(t, before+1, testutil.ToFloat64(AuthEvents.WithLabelValues("login", "error")))
	out := buf.String()
	assert.Contains(t, out, `"audit_event":"login"`)
	assert.Contains(t, out, `"subject_id":7`)
	assert.Contains(t, out, `"level":"WARN"`)
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "taskhub-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestRedisSpan_RecordsFailure(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	_, span := StartRedisSpan(context.Background(), "get")
	EndSpan(span, errors.New("connection refused"))
	_, span = StartRedisSpan(context.Background(), "set")
	EndSpan(span, nil)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "redis get", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, codes.Unset, ended[1].Status().Code)
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}

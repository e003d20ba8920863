package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

func TestWithContext(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()
	ctxWithLogger := WithContext(ctx, logger)

	retrievedLogger := FromContext(ctxWithLogger)
	assert.NotNil(t, retrievedLogger)
}

func TestFromContext_NotFound(t *testing.T) {
	ctx := context.Background()
	logger := FromContext(ctx)

	// Should return a no-op logger
	assert.NotNil(t, logger)
}

func TestWithRequestID(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()
	requestID := "req-123"

	newCtx, newLogger := WithRequestID(ctx, logger, requestID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, requestID, GetRequestID(newCtx))
}

func TestWithTenantID(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := "tenant-456"

	newCtx, newLogger := WithTenantID(ctx, logger, tenantID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, tenantID, GetTenantID(newCtx))
}

func TestGetRequestID_NotFound(t *testing.T) {
	ctx := context.Background()
	requestID := GetRequestID(ctx)
	assert.Empty(t, requestID)
}

func TestGetTenantID_NotFound(t *testing.T) {
	ctx := context.Background()
	tenantID := GetTenantID(ctx)
	assert.Empty(t, tenantID)
}

func TestContextChaining(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()

	ctx, logger = WithRequestID(ctx, logger, "req-1")
	ctx, logger = WithTenantID(ctx, logger, "tenant-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.NotNil(t, logger)
}

func TestContextKeys(t *testing.T) {
	// Verify context keys are unique
	assert.NotEqual(t, LoggerKey, RequestIDKey)
	assert.NotEqual(t, RequestIDKey, TenantIDKey)
	assert.NotEqual(t, LoggerKey, TenantIDKey)
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
	logger := FromContext(ctx)

	// Should return a no-op logger when value is wrong type
	assert.NotNil(t, logger)
	logger.Info("test")
}

func TestMultipleWithRequestID(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()

	ctx, _ = WithRequestID(ctx, logger, "first-id")
	assert.Equal(t, "first-id", GetRequestID(ctx))

	// Second call should override
	ctx, _ = WithRequestID(ctx, logger, "second-id")
	assert.Equal(t, "second-id", GetRequestID(ctx))
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	baseLogger := zap.NewNop()
	ctx := context.Background()

	enrichedLogger := WithTraceContext(ctx, baseLogger)

	// Without a span, should return the same logger
	assert.Equal(t, baseLogger, enrichedLogger)
}

func TestWithTraceContext_InvalidSpanContext(t *testing.T) {
	tp := noop.NewTracerProvider()
	tracer := tp.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	// Noop tracer creates spans with invalid context
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	assert.False(t, spanCtx.IsValid())

	baseLogger := zap.NewNop()
	enrichedLogger := WithTraceContext(ctx, baseLogger)
	assert.Equal(t, baseLogger, enrichedLogger)
}

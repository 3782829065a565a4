package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(empty) = %q, want empty", got)
	}
	ctx := WithCorrelationID(context.Background(), "abc-123")
	if got := CorrelationID(ctx); got != "abc-123" {
		t.Errorf("CorrelationID() = %q, want abc-123", got)
	}
}

func TestLoggerFrom(t *testing.T) {
	fallback := zap.NewExample()
	scoped := zap.NewNop()

	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("LoggerFrom() without scoped logger should return fallback")
	}
	if got := LoggerFrom(WithLogger(context.Background(), scoped), fallback); got != scoped {
		t.Error("LoggerFrom() should prefer the scoped logger")
	}
	if got := LoggerFrom(context.Background(), nil); got == nil {
		t.Error("LoggerFrom() with nil fallback must not return nil")
	}
}

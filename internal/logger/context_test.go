package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestContextRoundTrip(t *testing.T) {
	base := zap.NewNop()
	stored := zap.NewNop().Named("request")

	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContext(ctx, base); got != stored {
		t.Error("stored logger not returned")
	}
}

func TestFromContextFallback(t *testing.T) {
	base := zap.NewNop()
	if got := FromContext(context.Background(), base); got != base {
		t.Error("fallback logger not returned")
	}
	if got := FromContext(context.Background(), nil); got == nil {
		t.Error("nil fallback must yield a usable logger")
	}
}

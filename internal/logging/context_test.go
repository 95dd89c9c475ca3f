package logging

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestCorrelationIDHelpers(t *testing.T) {
	ctx := context.Background()
	if GetCorrelationID(ctx) != "" {
		t.Fatalf("expected empty correlation id")
	}

	ctx = WithCorrelationID(ctx, "cid")
	if GetCorrelationID(ctx) != "cid" {
		t.Fatalf("expected correlation id to be set")
	}

	same, id := EnsureCorrelationID(ctx)
	if id != "cid" || same != ctx {
		t.Fatalf("expected existing correlation id to be kept")
	}
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid, got %q", id)
	}
	if GetCorrelationID(ctx) != id {
		t.Fatalf("expected generated id stored in context")
	}
}

package engine

import (
	"context"
	"testing"
	"time"
)

func TestHostLimiter_DisabledNeverBlocks(t *testing.T) {
	l := NewHostLimiter(0, 1)
	if l != nil {
		t.Fatal("rps <= 0 should return a nil limiter")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, "example.com"); err != nil {
		t.Errorf("nil limiter Wait returned %v", err)
	}
	if l.Len() != 0 || l.Prune(time.Second) != 0 {
		t.Error("nil limiter should report no hosts")
	}
}

func TestHostLimiter_PerHostBuckets(t *testing.T) {
	l := NewHostLimiter(1, 1)

	ctx := context.Background()
	if err := l.Wait(ctx, "a.example"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	// A different host has its own bucket and must not wait.
	start := time.Now()
	if err := l.Wait(ctx, "b.example"); err != nil {
		t.Fatalf("second host wait: %v", err)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Error("second host should not be throttled by the first")
	}

	// Same host again exceeds the burst; a short deadline must fail.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(short, "a.example"); err == nil {
		t.Error("expected wait on exhausted bucket to fail under a short deadline")
	}

	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}
	if removed := l.Prune(0); removed != 2 {
		t.Errorf("Prune removed %d, want 2", removed)
	}
}

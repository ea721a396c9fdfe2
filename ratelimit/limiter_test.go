package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/hookline/hookline/id"
)

func TestUnlimitedAlwaysAllows(t *testing.T) {
	l := New()
	epID := id.NewEndpointID()

	for range 100 {
		if !l.Allow(epID, 0) {
			t.Fatal("rate limit 0 must always allow")
		}
	}
}

func TestAllowConsumesBurst(t *testing.T) {
	l := New()
	epID := id.NewEndpointID()

	// Bucket starts full at the rate limit.
	for i := range 5 {
		if !l.Allow(epID, 5) {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}

	if l.Allow(epID, 5) {
		t.Fatal("request beyond burst should be denied")
	}
}

func TestBucketRefills(t *testing.T) {
	l := New()
	epID := id.NewEndpointID()

	// Drain the bucket at 100/s.
	for range 100 {
		l.Allow(epID, 100)
	}
	if l.Allow(epID, 100) {
		t.Fatal("bucket should be empty")
	}

	// 50ms at 100/s refills ~5 tokens.
	time.Sleep(50 * time.Millisecond)
	if !l.Allow(epID, 100) {
		t.Fatal("bucket should have refilled")
	}
}

func TestEndpointsAreIsolated(t *testing.T) {
	l := New()
	a := id.NewEndpointID()
	b := id.NewEndpointID()

	// Drain endpoint a; endpoint b is unaffected.
	for range 3 {
		l.Allow(a, 3)
	}
	if l.Allow(a, 3) {
		t.Fatal("endpoint a should be limited")
	}
	if !l.Allow(b, 3) {
		t.Fatal("endpoint b should be unaffected")
	}
}

func TestWaitReturnsWhenAllowed(t *testing.T) {
	l := New()
	epID := id.NewEndpointID()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// First call within burst returns immediately.
	if err := l.Wait(ctx, epID, 100); err != nil {
		t.Fatal(err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New()
	epID := id.NewEndpointID()

	// Drain a slow bucket so Wait must block.
	l.Allow(epID, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, epID, 1)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestReset(t *testing.T) {
	l := New()
	epID := id.NewEndpointID()

	for range 2 {
		l.Allow(epID, 2)
	}
	if l.Allow(epID, 2) {
		t.Fatal("bucket should be drained")
	}

	l.Reset(epID)
	if !l.Allow(epID, 2) {
		t.Fatal("reset should restore a full bucket")
	}
}

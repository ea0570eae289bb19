package ratelimiter

import (
	"context"
	"testing"
	"time"
)

// TestNew verifies rate limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
		unlimited         bool
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "default burst", requestsPerSecond: 10, burst: 0},
		{name: "unlimited (zero rate)", requestsPerSecond: 0, burst: 0, unlimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if limiter == nil || limiter.limiter == nil {
				t.Fatal("New() returned an unusable limiter")
			}
			if limiter.Unlimited() != tt.unlimited {
				t.Errorf("Unlimited() = %v, want %v", limiter.Unlimited(), tt.unlimited)
			}
		})
	}
}

// TestAllow verifies that Allow() enforces the burst capacity.
func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Error("request beyond burst should be rejected")
	}
}

// TestDefaultBurst verifies that a zero burst admits one second of traffic.
func TestDefaultBurst(t *testing.T) {
	limiter := New(5, 0)

	for i := 0; i < 5; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if limiter.Allow() {
		t.Error("sixth request should be rejected")
	}
}

// TestUnlimited verifies that a zero rate never throttles.
func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 10000; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed with unlimited rate", i)
		}
	}
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() on unlimited limiter: %v", err)
	}
}

// TestWaitCancelled verifies that Wait returns when the context is cancelled.
func TestWaitCancelled(t *testing.T) {
	limiter := New(1, 1)
	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait() should fail when the context expires before a token is available")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Wait() took %v, expected to return promptly", elapsed)
	}
}

// TestSetLimit verifies dynamic rate changes.
func TestSetLimit(t *testing.T) {
	limiter := New(1, 1)
	limiter.SetLimit(0)
	if !limiter.Unlimited() {
		t.Fatal("SetLimit(0) should remove the limit")
	}

	limiter.SetLimit(50)
	limiter.SetBurst(50)
	if limiter.Unlimited() {
		t.Fatal("SetLimit(50) should restore a finite limit")
	}
}

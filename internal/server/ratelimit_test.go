package server

import "testing"

func TestRateLimiter_PerIPBudget(t *testing.T) {
	rl := NewRateLimiter(0, 0)

	// Budget of 2 per minute means a burst of 2 then rejection.
	for i := 0; i < 2; i++ {
		if !rl.Allow("contact", "203.0.113.7", 2) {
			t.Fatalf("Allow() #%d = false, want true within budget", i)
		}
	}
	if rl.Allow("contact", "203.0.113.7", 2) {
		t.Error("Allow() = true, want false over budget")
	}
}

func TestRateLimiter_IsolatesIPsAndForms(t *testing.T) {
	rl := NewRateLimiter(0, 0)

	for i := 0; i < 2; i++ {
		rl.Allow("contact", "203.0.113.7", 2)
	}
	if rl.Allow("contact", "203.0.113.7", 2) {
		t.Fatal("first ip should be exhausted")
	}

	if !rl.Allow("contact", "203.0.113.8", 2) {
		t.Error("a different ip must have its own bucket")
	}
	if !rl.Allow("feedback", "203.0.113.7", 2) {
		t.Error("the same ip on a different form must have its own bucket")
	}
}

func TestRateLimiter_ZeroBudgetDisables(t *testing.T) {
	rl := NewRateLimiter(0, 0)

	for i := 0; i < 100; i++ {
		if !rl.Allow("contact", "203.0.113.7", 0) {
			t.Fatal("Allow() = false with per-IP limiting disabled")
		}
	}
}

func TestRateLimiter_GlobalBucket(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow("contact", "203.0.113.7", 0) {
			allowed++
		}
	}
	if allowed > 3 {
		t.Errorf("allowed = %d, want at most burst+refill", allowed)
	}
}
